package service

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effectharvest/internal/adapters/catalog"
	"effectharvest/internal/adapters/downloader"
	"effectharvest/internal/adapters/localstorage"
	"effectharvest/internal/adapters/sqliteindex"
	"effectharvest/internal/core/domain"
	"effectharvest/internal/logging"
	"effectharvest/internal/testsupport"
)

type pipeline struct {
	fake         *testsupport.Catalog
	fs           afero.Fs
	index        *sqliteindex.Store
	store        *ResultStore
	orchestrator *Orchestrator
}

func newPipeline(t *testing.T, fs afero.Fs) *pipeline {
	t.Helper()
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	fake := testsupport.NewCatalog(t)
	index, err := sqliteindex.Open(context.Background(), filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	logger := logging.NewNop()
	storage := localstorage.NewLocalStorage(fs, "/out/results", "/out/videos")
	store := NewResultStore(storage, index, logger)
	client := catalog.NewClient(catalog.Options{BaseURL: fake.SearchURL(), Timeout: 5 * time.Second}, nil)
	dl := downloader.NewHTTPDownloader(downloader.Options{Timeout: 5 * time.Second}, nil)

	orchestrator := NewOrchestrator(
		NewPaginator(client, PaginatorOptions{}, logger),
		NewScheduler(dl, storage, logger),
		store,
		OrchestratorOptions{
			Query: func(keyword string) domain.SearchQuery {
				return domain.SearchQuery{Keyword: keyword, EffectType: 5, PageSize: 2}
			},
			SaveFullResult:  true,
			SaveDescriptors: true,
			MinResolution:   domain.Resolution1080p,
			Workers:         3,
		},
		logger,
	)
	return &pipeline{fake: fake, fs: fs, index: index, store: store, orchestrator: orchestrator}
}

// addGreenTea registers five records over three pages, two of them without media
// and one below 1080p.
func (p *pipeline) addGreenTea() {
	media := func(name, definition string, height int) *testsupport.Video {
		return &testsupport.Video{
			URL:        p.fake.AddMedia(name, []byte("bytes of "+name)),
			Format:     "mp4",
			Definition: definition,
			Height:     height,
		}
	}
	p.fake.AddPages("绿茶",
		testsupport.Page{Offset: 0, HasMore: true, NextOffset: 2, Items: []domain.RawItem{
			testsupport.Item("1", "morning", media("m1", "1080p", 1080)),
			testsupport.Item("2", "no media", nil),
		}},
		testsupport.Page{Offset: 2, HasMore: true, NextOffset: 4, Items: []domain.RawItem{
			testsupport.Item("3", "evening", media("m3", "4K", 2160)),
			testsupport.Item("4", "still", nil),
		}},
		testsupport.Page{Offset: 4, HasMore: false, NextOffset: 5, Items: []domain.RawItem{
			testsupport.Item("5", "small", media("m5", "", 720)),
		}},
	)
}

func TestRunKeywordSearchAndDownload(t *testing.T) {
	p := newPipeline(t, nil)
	p.addGreenTea()

	kr := p.orchestrator.RunKeyword(context.Background(), "run-1", "绿茶", ModeSearchAndDownload)
	require.NoError(t, kr.Err)

	assert.Equal(t, 5, kr.Items)
	assert.Equal(t, 3, kr.Descriptors)
	assert.False(t, kr.Partial)
	assert.Equal(t, 2, kr.Downloads.Downloaded)
	assert.Equal(t, 1, kr.Downloads.SkippedLowQuality)
	assert.Len(t, kr.Outcomes, 3)

	require.NotEmpty(t, kr.ResultPath)
	require.NotEmpty(t, kr.DescriptorsPath)
	assert.Equal(t, "/out/results", filepath.Dir(kr.ResultPath))
	assert.Regexp(t, `effect_绿茶_\d{8}_\d{6}\.json$`, kr.ResultPath)
	assert.Regexp(t, `video_urls_绿茶_\d{8}_\d{6}\.json$`, kr.DescriptorsPath)

	saved, err := p.store.LoadDescriptors(context.Background(), kr.DescriptorsPath)
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, "morning", saved[0].Title)

	data, err := afero.ReadFile(p.fs, "/out/videos/绿茶/evening.mp4")
	require.NoError(t, err)
	assert.Equal(t, "bytes of m3", string(data))

	latest, err := p.index.LatestDocument(context.Background(), "绿茶", domain.KindDescriptors)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, kr.DescriptorsPath, latest.Path)
	assert.Equal(t, "run-1", latest.RunID)

	downloaded, err := p.index.CountOutcomes(context.Background(), "run-1", domain.StatusDownloaded)
	require.NoError(t, err)
	assert.Equal(t, 2, downloaded)
}

func TestRunKeywordSearchOnlyDownloadsNothing(t *testing.T) {
	p := newPipeline(t, nil)
	p.addGreenTea()

	kr := p.orchestrator.RunKeyword(context.Background(), "run-1", "绿茶", ModeSearchOnly)
	require.NoError(t, kr.Err)
	assert.Equal(t, 3, kr.Descriptors)
	assert.Empty(t, kr.Outcomes)
	assert.Zero(t, p.fake.MediaHits())
}

func TestRunBatchDownloadOnlyUsesSavedDescriptors(t *testing.T) {
	p := newPipeline(t, nil)
	p.addGreenTea()
	ctx := context.Background()

	searched, err := p.orchestrator.RunBatch(ctx, []string{"绿茶"}, ModeSearchOnly)
	require.NoError(t, err)
	require.Len(t, searched.Keywords, 1)
	searches := len(p.fake.Searches())

	report, err := p.orchestrator.RunBatch(ctx, nil, ModeDownloadOnly)
	require.NoError(t, err)
	require.Len(t, report.Keywords, 1)

	kr := report.Keywords[0]
	require.NoError(t, kr.Err)
	assert.Equal(t, "绿茶", kr.Keyword)
	assert.Equal(t, searched.Keywords[0].DescriptorsPath, kr.DescriptorsPath)
	assert.Equal(t, 2, kr.Downloads.Downloaded)
	assert.Equal(t, searches, len(p.fake.Searches()), "download-only must not search")

	again, err := p.orchestrator.RunBatch(ctx, []string{"绿茶"}, ModeDownloadOnly)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Keywords[0].Downloads.SkippedExists)
	assert.Equal(t, 2, p.fake.MediaHits())
}

func TestRunBatchDownloadOnlyWithoutSavedList(t *testing.T) {
	p := newPipeline(t, nil)

	report, err := p.orchestrator.RunBatch(context.Background(), []string{"unknown"}, ModeDownloadOnly)
	require.NoError(t, err)
	require.Len(t, report.Keywords, 1)
	assert.Equal(t, "validation", domain.Kind(report.Keywords[0].Err))

	_, err = p.orchestrator.RunBatch(context.Background(), nil, ModeDownloadOnly)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestRunBatchContinuesAfterKeywordFailure(t *testing.T) {
	p := newPipeline(t, nil)
	p.addGreenTea()
	p.fake.AddPages("broken", testsupport.Page{Offset: 0, Status: http.StatusInternalServerError, Body: "oops"})

	report, err := p.orchestrator.RunBatch(context.Background(), []string{"broken", "绿茶"}, ModeSearchOnly)
	require.NoError(t, err)
	require.Len(t, report.Keywords, 2)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.CompletedAt.Before(report.StartedAt))

	assert.Equal(t, "transport", domain.Kind(report.Keywords[0].Err))
	assert.NoError(t, report.Keywords[1].Err)
	assert.Equal(t, 1, report.Failed())

	kws, err := p.index.Keywords(context.Background(), domain.KindSearchResult)
	require.NoError(t, err)
	assert.Equal(t, []string{"绿茶"}, kws)
}

func TestRunKeywordKeepsPartialResults(t *testing.T) {
	p := newPipeline(t, nil)
	p.fake.AddPages("flaky",
		testsupport.Page{Offset: 0, HasMore: true, NextOffset: 2, Items: []domain.RawItem{
			testsupport.Item("1", "one", &testsupport.Video{URL: "https://cdn.example/1"}),
			testsupport.Item("2", "two", nil),
		}},
		testsupport.Page{Offset: 2, Status: http.StatusBadGateway},
	)

	kr := p.orchestrator.RunKeyword(context.Background(), "run-1", "flaky", ModeSearchOnly)
	require.NoError(t, kr.Err)
	assert.True(t, kr.Partial)
	require.Error(t, kr.Warning)
	assert.Equal(t, 2, kr.Items)

	latest, err := p.index.LatestDocument(context.Background(), "flaky", domain.KindSearchResult)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Partial)
	assert.Equal(t, 2, latest.ItemCount)
}

func TestRunKeywordSaveFailureFailsOnlyThatKeyword(t *testing.T) {
	p := newPipeline(t, afero.NewReadOnlyFs(afero.NewMemMapFs()))
	p.addGreenTea()

	report, err := p.orchestrator.RunBatch(context.Background(), []string{"绿茶"}, ModeSearchAndDownload)
	require.NoError(t, err)
	require.Len(t, report.Keywords, 1)
	assert.Equal(t, "filesystem", domain.Kind(report.Keywords[0].Err))
	assert.Zero(t, p.fake.MediaHits())
}

func TestRunBatchCancelledMarksRemainingKeywords(t *testing.T) {
	p := newPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.orchestrator.RunBatch(ctx, []string{"a", "b"}, ModeSearchAndDownload)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Keywords, 2)
	for _, kr := range report.Keywords {
		assert.ErrorIs(t, kr.Err, context.Canceled)
	}
	assert.Empty(t, p.fake.Searches())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSearchAndDownload, mode)

	mode, err = ParseMode("download")
	require.NoError(t, err)
	assert.Equal(t, ModeDownloadOnly, mode)

	_, err = ParseMode("everything")
	assert.Error(t, err)
}

func TestResultStoreWithoutIndex(t *testing.T) {
	storage, _ := newMemStorage()
	store := NewResultStore(storage, nil, logging.NewNop())
	ctx := context.Background()

	path, err := store.SaveDescriptors(ctx, "", "solo", nil, false, time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "/out/results/video_urls_solo_20261019_093000.json", path)

	loaded, err := store.LoadDescriptors(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	_, _, err = store.LatestDescriptors(ctx, "solo")
	assert.Error(t, err)

	kws, err := store.Keywords(ctx, domain.KindDescriptors)
	require.NoError(t, err)
	assert.Empty(t, kws)
}
