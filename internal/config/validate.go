package config

import (
	"errors"
	"fmt"
	"net/url"

	"effectharvest/internal/core/domain"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Catalog.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("catalog.page_size must be positive, got %d", c.Catalog.PageSize))
	}
	if c.Catalog.PageDelayMS < 0 || c.Catalog.PageJitterMS < 0 {
		errs = append(errs, errors.New("catalog.page_delay_ms and catalog.page_jitter_ms must not be negative"))
	}
	if u, err := url.Parse(c.Catalog.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("catalog.base_url %q is not an absolute URL", c.Catalog.BaseURL))
	}
	if _, err := domain.ParseResolution(c.Download.MinResolution); err != nil {
		errs = append(errs, fmt.Errorf("download.min_resolution: %w", err))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
