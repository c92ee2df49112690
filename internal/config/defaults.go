package config

const (
	defaultResultsDir      = "data/results/jianying"
	defaultVideoDir        = "data/video"
	defaultStateDir        = "data/state"
	defaultCatalogBaseURL  = "https://www.jianying.com/artist/v1/effect/search"
	defaultEffectType      = 5
	defaultPageSize        = 50
	defaultRequestTimeout  = 30
	defaultPageDelayMS     = 1000
	defaultPageJitterMS    = 1000
	defaultFetchAttempts   = 1
	defaultMaxWorkers      = 5
	defaultMinResolution   = "1080p"
	defaultDownloadTimeout = 1800
	defaultReferer         = "https://www.jianying.com/"
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultLogMaxSizeMB    = 20
	defaultLogMaxBackups   = 3

	envCookie    = "EFFECT_HARVEST_COOKIE"
	envUserAgent = "EFFECT_HARVEST_USER_AGENT"
)

func defaultParams() map[string]string {
	return map[string]string{
		"aid":                "3704",
		"version_name":       "18.1.0",
		"version_code":       "11.0.0",
		"sdk_version":        "18.1.0",
		"effect_sdk_version": "18.1.0",
		"device_platform":    "web",
		"language":           "zh-Hans",
		"device_type":        "web",
		"channel":            "online",
	}
}

func defaultHeaders() map[string]string {
	return map[string]string{
		"accept":          "application/json, text/plain, */*",
		"accept-language": "zh-CN,zh;q=0.9",
		"content-type":    "application/json",
		"origin":          "https://www.jianying.com",
		"user-agent":      "Mozilla/5.0",
	}
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Paths: Paths{
			ResultsDir: defaultResultsDir,
			VideoDir:   defaultVideoDir,
			StateDir:   defaultStateDir,
		},
		Catalog: Catalog{
			BaseURL:        defaultCatalogBaseURL,
			EffectType:     defaultEffectType,
			PageSize:       defaultPageSize,
			NeedRecommend:  true,
			RequestTimeout: defaultRequestTimeout,
			PageDelayMS:    defaultPageDelayMS,
			PageJitterMS:   defaultPageJitterMS,
			FetchAttempts:  defaultFetchAttempts,
			Params:         defaultParams(),
			Headers:        defaultHeaders(),
			Cookies:        map[string]string{},
		},
		Output: Output{
			SaveFullResult: true,
			SaveVideoURLs:  true,
		},
		Download: Download{
			Enabled:       false,
			MaxWorkers:    defaultMaxWorkers,
			MinResolution: defaultMinResolution,
			Timeout:       defaultDownloadTimeout,
			Referer:       defaultReferer,
		},
		Logging: Logging{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}
