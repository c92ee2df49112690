package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) applyEnv() {
	if raw, ok := os.LookupEnv(envCookie); ok && strings.TrimSpace(raw) != "" {
		if c.Catalog.Cookies == nil {
			c.Catalog.Cookies = map[string]string{}
		}
		for name, value := range ParseCookieHeader(raw) {
			c.Catalog.Cookies[name] = value
		}
	}
	if ua, ok := os.LookupEnv(envUserAgent); ok && strings.TrimSpace(ua) != "" {
		if c.Catalog.Headers == nil {
			c.Catalog.Headers = map[string]string{}
		}
		c.Catalog.Headers["user-agent"] = strings.TrimSpace(ua)
	}
}

// ParseCookieHeader splits a browser "Cookie" header value into pairs.
func ParseCookieHeader(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeKeywords()
	c.normalizeCatalog()
	c.normalizeDownload()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ResultsDir) == "" {
		c.Paths.ResultsDir = defaultResultsDir
	}
	if strings.TrimSpace(c.Paths.VideoDir) == "" {
		c.Paths.VideoDir = defaultVideoDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.ResultsDir, err = expandPath(c.Paths.ResultsDir); err != nil {
		return fmt.Errorf("paths.results_dir: %w", err)
	}
	if c.Paths.VideoDir, err = expandPath(c.Paths.VideoDir); err != nil {
		return fmt.Errorf("paths.video_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Logging.File != "" {
		if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeKeywords() {
	seen := make(map[string]struct{}, len(c.Keywords))
	keywords := make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	c.Keywords = keywords
}

func (c *Config) normalizeCatalog() {
	c.Catalog.BaseURL = strings.TrimSpace(c.Catalog.BaseURL)
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	if c.Catalog.RequestTimeout <= 0 {
		c.Catalog.RequestTimeout = defaultRequestTimeout
	}
	if c.Catalog.FetchAttempts <= 0 {
		c.Catalog.FetchAttempts = defaultFetchAttempts
	}
	if c.Catalog.Params == nil {
		c.Catalog.Params = map[string]string{}
	}
	for key, value := range defaultParams() {
		if _, ok := c.Catalog.Params[key]; !ok {
			c.Catalog.Params[key] = value
		}
	}
	headers := make(map[string]string, len(c.Catalog.Headers))
	for key, value := range c.Catalog.Headers {
		headers[strings.ToLower(strings.TrimSpace(key))] = value
	}
	c.Catalog.Headers = headers
	if c.Catalog.Cookies == nil {
		c.Catalog.Cookies = map[string]string{}
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.MaxWorkers <= 0 {
		c.Download.MaxWorkers = defaultMaxWorkers
	}
	c.Download.MinResolution = strings.TrimSpace(c.Download.MinResolution)
	if c.Download.MinResolution == "" {
		c.Download.MinResolution = defaultMinResolution
	}
	if c.Download.Timeout <= 0 {
		c.Download.Timeout = defaultDownloadTimeout
	}
	c.Download.Referer = strings.TrimSpace(c.Download.Referer)
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
}
