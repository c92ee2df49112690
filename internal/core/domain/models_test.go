package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchQueryValidate(t *testing.T) {
	assert.NoError(t, SearchQuery{Keyword: "绿茶", PageSize: 20}.Validate())

	var validation *ValidationError
	err := SearchQuery{Keyword: " ", PageSize: 20}.Validate()
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "keyword", validation.Field)

	err = SearchQuery{Keyword: "tea", PageSize: -1}.Validate()
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "page_size", validation.Field)
}

func TestRawItemKeepsUnknownFields(t *testing.T) {
	input := `{"effect_item_list":[{"common_attr":{"id":"9","title":"t"},"extra":{"nested":[1,2]}}],"total":1}`
	var result MergedResult
	require.NoError(t, json.Unmarshal([]byte(input), &result))
	require.Len(t, result.Items, 1)

	out, err := json.Marshal(result.Items[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"common_attr":{"id":"9","title":"t"},"extra":{"nested":[1,2]}}`, string(out))

	view, err := result.Items[0].View()
	require.NoError(t, err)
	require.NotNil(t, view.CommonAttr)
	assert.Equal(t, "9", view.CommonAttr.ID)
	assert.Nil(t, view.Media())
}

func TestDescriptorJSONKeys(t *testing.T) {
	data, err := json.Marshal(AssetDescriptor{
		SourceItemID: "1", Title: "t", VideoURL: "u", Format: "mp4",
		QualityLabel: "1080p", HeightPx: 1080, WidthPx: 1920, SizeBytes: 10,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"source_item_id":"1","title":"t","description":"","video_url":"u","format":"mp4",
		"definition":"1080p","height":1080,"width":1920,"size":10}`, string(data))
}

func TestTallyAndBatchFailures(t *testing.T) {
	counts := Tally([]DownloadOutcome{
		{Status: StatusDownloaded, Bytes: 10},
		{Status: StatusDownloaded, Bytes: 5},
		{Status: StatusSkippedExists},
		{Status: StatusSkippedLowQuality},
		{Status: StatusFailed, Err: errors.New("x")},
		{Status: StatusCancelled},
	})
	assert.Equal(t, OutcomeCounts{
		Downloaded: 2, SkippedLowQuality: 1, SkippedExists: 1, Failed: 1, Cancelled: 1, Bytes: 15,
	}, counts)

	batch := BatchReport{Keywords: []KeywordReport{
		{Keyword: "a"},
		{Keyword: "b", Err: context.Canceled},
		{Keyword: "c", Partial: true, Warning: errors.New("page 2")},
	}}
	assert.Equal(t, 1, batch.Failed())
}

func TestDownloadOutcomeErrorMessage(t *testing.T) {
	assert.Empty(t, DownloadOutcome{}.ErrorMessage())
	assert.Equal(t, "boom", DownloadOutcome{Err: errors.New("boom")}.ErrorMessage())
}

func TestParseResolution(t *testing.T) {
	tests := map[string]Resolution{
		"720p": Resolution720p, "1080P": Resolution1080p, "2k": Resolution2K,
		"4K": Resolution4K, "": DefaultResolution, " 1440p ": Resolution2K,
	}
	for input, want := range tests {
		got, err := ParseResolution(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseResolution("8K")
	assert.Equal(t, "validation", Kind(err))

	assert.Equal(t, 2160, Resolution4K.MinHeight())
	assert.Equal(t, 1440, Resolution2K.MinHeight())
	assert.Equal(t, "2K", Resolution2K.String())
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&TransportError{Op: "search", StatusCode: 500}, "transport"},
		{fmt.Errorf("wrapped: %w", &ResponseFormatError{Reason: "no data"}), "response_format"},
		{&ValidationError{Field: "keyword", Reason: "empty"}, "validation"},
		{&FilesystemError{Op: "write", Path: "/x", Err: errors.New("disk full")}, "filesystem"},
		{errors.New("plain"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), tt.err.Error())
	}

	inner := errors.New("refused")
	assert.ErrorIs(t, &TransportError{Op: "download", URL: "u", Err: inner}, inner)
}
