// Package config loads the effect-harvest TOML configuration.
//
// A Config is built once at startup: defaults, then the TOML file, then
// credential overrides from the environment (a .env file is honoured). After
// Load returns, the value is treated as read-only and handed to each component
// at construction time.
package config
