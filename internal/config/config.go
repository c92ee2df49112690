package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"effectharvest/internal/core/domain"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output and state directories.
type Paths struct {
	ResultsDir string `toml:"results_dir"`
	VideoDir   string `toml:"video_dir"`
	StateDir   string `toml:"state_dir"`
}

// Catalog contains the search API connection and paging settings.
// Params, Headers and Cookies are passed through to the API untouched.
type Catalog struct {
	BaseURL        string            `toml:"base_url"`
	EffectType     int               `toml:"effect_type"`
	PageSize       int               `toml:"page_size"`
	NeedRecommend  bool              `toml:"need_recommend"`
	RequestTimeout int               `toml:"request_timeout"`
	PageDelayMS    int               `toml:"page_delay_ms"`
	PageJitterMS   int               `toml:"page_jitter_ms"`
	FetchAttempts  int               `toml:"fetch_attempts"`
	Params         map[string]string `toml:"params"`
	Headers        map[string]string `toml:"headers"`
	Cookies        map[string]string `toml:"cookies"`
}

// Output selects which documents are persisted per keyword.
type Output struct {
	SaveFullResult bool `toml:"save_full_result"`
	SaveVideoURLs  bool `toml:"save_video_urls"`
}

// Download contains media download settings.
type Download struct {
	Enabled        bool   `toml:"enabled"`
	MaxWorkers     int    `toml:"max_workers"`
	MinResolution  string `toml:"min_resolution"`
	Timeout        int    `toml:"timeout"`
	Referer        string `toml:"referer"`
	ASCIIFileNames bool   `toml:"ascii_file_names"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for effect-harvest.
type Config struct {
	Keywords []string `toml:"keywords"`
	Paths    Paths    `toml:"paths"`
	Catalog  Catalog  `toml:"catalog"`
	Output   Output   `toml:"output"`
	Download Download `toml:"download"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/effect-harvest/config.toml")
}

// Load locates, parses, and validates a configuration file. Credentials found
// in the environment (or a .env file in the working directory) override the
// file. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	// A missing .env is fine; variables may be exported directly.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("effect-harvest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the result, video and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ResultsDir, c.Paths.VideoDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MinResolution returns the parsed download quality bar.
func (c *Config) MinResolution() domain.Resolution {
	res, err := domain.ParseResolution(c.Download.MinResolution)
	if err != nil {
		return domain.DefaultResolution
	}
	return res
}

// RequestTimeout returns the per-page HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Catalog.RequestTimeout) * time.Second
}

// DownloadTimeout returns the per-asset HTTP timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.Timeout) * time.Second
}

// PageDelay returns the fixed lower bound and jitter of the inter-page wait.
func (c *Config) PageDelay() (time.Duration, time.Duration) {
	return time.Duration(c.Catalog.PageDelayMS) * time.Millisecond,
		time.Duration(c.Catalog.PageJitterMS) * time.Millisecond
}

// IndexPath is the SQLite record index location.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Paths.StateDir, "records.db")
}

// LockPath is the file locked for the duration of a run.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "effect-harvest.lock")
}

// Query builds the search query for keyword from the catalog settings.
func (c *Config) Query(keyword string) domain.SearchQuery {
	return domain.SearchQuery{
		Keyword:       strings.TrimSpace(keyword),
		EffectType:    c.Catalog.EffectType,
		PageSize:      c.Catalog.PageSize,
		NeedRecommend: c.Catalog.NeedRecommend,
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// SampleConfig returns the commented sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
