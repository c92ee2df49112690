package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effectharvest/internal/core/domain"
	"effectharvest/internal/testsupport"
)

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// writeConfig points every path into a temp dir and the catalog at fake.
func writeConfig(t *testing.T, fake *testsupport.Catalog, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	content := fmt.Sprintf(`keywords = ["绿茶"]

[paths]
results_dir = %q
video_dir = %q
state_dir = %q

[catalog]
base_url = %q
page_size = 2
page_delay_ms = 0
page_jitter_ms = 0

[download]
enabled = true
%s
`, filepath.Join(dir, "results"), filepath.Join(dir, "video"), filepath.Join(dir, "state"), fake.SearchURL(), extra)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path, dir
}

func addCatalog(fake *testsupport.Catalog) {
	fake.AddPages("绿茶",
		testsupport.Page{Offset: 0, HasMore: true, NextOffset: 2, Items: []domain.RawItem{
			testsupport.Item("1", "sunrise", &testsupport.Video{URL: fake.AddMedia("a", []byte("aaaa")), Definition: "1080p", Height: 1080}),
			testsupport.Item("2", "no media", nil),
		}},
		testsupport.Page{Offset: 2, Items: []domain.RawItem{
			testsupport.Item("3", "dusk", &testsupport.Video{URL: fake.AddMedia("b", []byte("bb")), Height: 720}),
		}},
	)
}

func TestConfigSamplePrintsEmbeddedConfig(t *testing.T) {
	out, _, err := executeCommand(t, "config", "sample")
	require.NoError(t, err)
	assert.Contains(t, out, "[catalog]")
	assert.Contains(t, out, "min_resolution")
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", "effect-harvest.toml")

	out, _, err := executeCommand(t, "config", "init", "--path", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)
	assert.FileExists(t, target)

	_, _, err = executeCommand(t, "config", "init", "--path", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = executeCommand(t, "config", "init", "--path", target, "--overwrite")
	require.NoError(t, err)
}

func TestRunSearchesAndDownloads(t *testing.T) {
	fake := testsupport.NewCatalog(t)
	addCatalog(fake)
	cfgPath, dir := writeConfig(t, fake, "")

	out, _, err := executeCommand(t, "--config", cfgPath, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "绿茶")
	assert.Contains(t, out, "descriptors:")
	assert.Contains(t, out, "0 failed")

	assert.FileExists(t, filepath.Join(dir, "video", "绿茶", "sunrise.mp4"))
	assert.NoFileExists(t, filepath.Join(dir, "video", "绿茶", "dusk.mp4"))
	assert.Equal(t, 1, fake.MediaHits())

	records, _, err := executeCommand(t, "--config", cfgPath, "records", "--keyword", "绿茶")
	require.NoError(t, err)
	assert.Contains(t, records, "video_urls_绿茶_")
	assert.Contains(t, records, "search_result")
}

func TestMinResolutionFlagOverridesConfig(t *testing.T) {
	fake := testsupport.NewCatalog(t)
	addCatalog(fake)
	cfgPath, dir := writeConfig(t, fake, `min_resolution = "1080p"`)

	_, _, err := executeCommand(t, "--config", cfgPath, "--min-resolution", "720p", "--workers", "1", "run", "绿茶")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "video", "绿茶", "dusk.mp4"))
	assert.Equal(t, 2, fake.MediaHits())

	_, _, err = executeCommand(t, "--config", cfgPath, "--min-resolution", "8K", "search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min-resolution")
}

func TestDownloadUsesSavedDescriptors(t *testing.T) {
	fake := testsupport.NewCatalog(t)
	addCatalog(fake)
	cfgPath, dir := writeConfig(t, fake, "")

	_, _, err := executeCommand(t, "--config", cfgPath, "search")
	require.NoError(t, err)
	searches := len(fake.Searches())
	assert.Zero(t, fake.MediaHits())

	_, _, err = executeCommand(t, "--config", cfgPath, "download")
	require.NoError(t, err)
	assert.Equal(t, searches, len(fake.Searches()))
	assert.FileExists(t, filepath.Join(dir, "video", "绿茶", "sunrise.mp4"))
}

func TestAllKeywordsFailingIsAnError(t *testing.T) {
	fake := testsupport.NewCatalog(t)
	fake.AddPages("broken", testsupport.Page{Offset: 0, Status: 500})
	cfgPath, _ := writeConfig(t, fake, "")

	out, _, err := executeCommand(t, "--config", cfgPath, "search", "broken")
	require.Error(t, err)
	assert.Contains(t, out, "failed (transport)")
}

func TestRunLockPreventsConcurrentRuns(t *testing.T) {
	fake := testsupport.NewCatalog(t)
	addCatalog(fake)
	cfgPath, dir := writeConfig(t, fake, "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "state"), 0o755))

	held := flock.New(filepath.Join(dir, "state", "effect-harvest.lock"))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	_, _, err = executeCommand(t, "--config", cfgPath, "search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another effect-harvest run")
	assert.Empty(t, fake.Searches())
}

func TestCleanKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, cleanKeywords([]string{" a ", "", "b", "a"}))
	assert.Empty(t, cleanKeywords(nil))
}

func TestRenderBatchReportMarksPartialAndFailed(t *testing.T) {
	report := &domain.BatchReport{
		RunID: "run-1",
		Keywords: []domain.KeywordReport{
			{Keyword: "ok", Items: 3, Descriptors: 2, Downloads: domain.OutcomeCounts{Downloaded: 2, Bytes: 2048}},
			{Keyword: "half", Partial: true, Warning: errors.New("page 2 failed")},
			{Keyword: "bad", Err: &domain.TransportError{Op: "search", StatusCode: 502}},
		},
	}
	out := renderBatchReport(report)
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "failed (transport)")
	assert.Contains(t, out, "half warning:")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "╭"))
	assert.Contains(t, out, "Run run-1: 3 keyword(s), 1 failed")
}
