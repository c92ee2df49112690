package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effectharvest/internal/config"
	"effectharvest/internal/core/domain"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("EFFECT_HARVEST_COOKIE", "")
	t.Setenv("EFFECT_HARVEST_USER_AGENT", "")
	t.Chdir(home)
	return home
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	home := isolate(t)

	cfg, resolved, exists, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, filepath.Join(home, ".config", "effect-harvest", "config.toml"), resolved)

	assert.Equal(t, filepath.Join(home, "data", "results", "jianying"), cfg.Paths.ResultsDir)
	assert.Equal(t, filepath.Join(home, "data", "video"), cfg.Paths.VideoDir)
	assert.Equal(t, 5, cfg.Catalog.EffectType)
	assert.Equal(t, 50, cfg.Catalog.PageSize)
	assert.Equal(t, 5, cfg.Download.MaxWorkers)
	assert.Equal(t, domain.Resolution1080p, cfg.MinResolution())
	assert.Equal(t, "3704", cfg.Catalog.Params["aid"])
	assert.True(t, cfg.Output.SaveFullResult)
	assert.False(t, cfg.Download.Enabled)
}

func TestLoadFileOverridesAndEnvCredentials(t *testing.T) {
	home := isolate(t)
	t.Setenv("EFFECT_HARVEST_COOKIE", "sessionid=abc; sid_tt=def")
	t.Setenv("EFFECT_HARVEST_USER_AGENT", "harvest-test")

	path := filepath.Join(home, "custom.toml")
	body := `
keywords = ["绿茶", " ", "绿茶", "春天"]

[catalog]
page_size = 20
fetch_attempts = 3

[catalog.params]
aid = "9999"

[catalog.headers]
Accept = "application/json"

[download]
enabled = true
max_workers = 3
min_resolution = "4K"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)

	assert.Equal(t, []string{"绿茶", "春天"}, cfg.Keywords)
	assert.Equal(t, 20, cfg.Catalog.PageSize)
	assert.Equal(t, 3, cfg.Catalog.FetchAttempts)
	assert.Equal(t, "9999", cfg.Catalog.Params["aid"])
	assert.Equal(t, "web", cfg.Catalog.Params["device_platform"], "missing params fall back to defaults")
	assert.Equal(t, "application/json", cfg.Catalog.Headers["accept"])
	assert.Equal(t, "harvest-test", cfg.Catalog.Headers["user-agent"])
	assert.Equal(t, map[string]string{"sessionid": "abc", "sid_tt": "def"}, cfg.Catalog.Cookies)
	assert.True(t, cfg.Download.Enabled)
	assert.Equal(t, 3, cfg.Download.MaxWorkers)
	assert.Equal(t, domain.Resolution4K, cfg.MinResolution())

	q := cfg.Query(" 绿茶 ")
	assert.Equal(t, domain.SearchQuery{Keyword: "绿茶", EffectType: 5, PageSize: 20, NeedRecommend: true}, q)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[download]\nmin_resolution = \"8K\"\n[catalog]\npage_size = -1\n"), 0o644))

	_, _, _, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_resolution")
	assert.Contains(t, err.Error(), "page_size")
}

func TestSampleConfigParsesAndMatchesDefaults(t *testing.T) {
	var cfg config.Config
	require.NoError(t, toml.Unmarshal([]byte(config.SampleConfig()), &cfg))

	def := config.Default()
	assert.Equal(t, def.Catalog.PageSize, cfg.Catalog.PageSize)
	assert.Equal(t, def.Download.MaxWorkers, cfg.Download.MaxWorkers)
	assert.Equal(t, def.Download.MinResolution, cfg.Download.MinResolution)
	assert.Equal(t, def.Catalog.BaseURL, cfg.Catalog.BaseURL)
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.SampleConfig(), string(data))
}

func TestParseCookieHeader(t *testing.T) {
	got := config.ParseCookieHeader(" a=1; b = two ;broken; =x; c=")
	assert.Equal(t, map[string]string{"a": "1", "b": "two", "c": ""}, got)
}
