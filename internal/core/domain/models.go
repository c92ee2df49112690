package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// SearchQuery describes one catalog search. It is passed by value and never
// mutated once issued.
type SearchQuery struct {
	Keyword       string `json:"keyword"`
	EffectType    int    `json:"effect_type"`
	PageSize      int    `json:"count"`
	NeedRecommend bool   `json:"need_recommend"`
}

// Validate rejects queries that must never reach the network.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.Keyword) == "" {
		return &ValidationError{Field: "keyword", Reason: "must not be empty"}
	}
	if q.PageSize <= 0 {
		return &ValidationError{Field: "page_size", Reason: "must be positive"}
	}
	return nil
}

// RawItem is one catalog record exactly as the API returned it.
// We keep the bytes so persisted results carry every field, not only the
// ones this tool reads.
type RawItem json.RawMessage

// MarshalJSON writes the record back untouched.
func (r RawItem) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON keeps a private copy of the record bytes.
func (r *RawItem) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

// CommonAttr is the title/description part of a catalog record.
type CommonAttr struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// OriginVideo is the media descriptor of a catalog record.
type OriginVideo struct {
	VideoURL   string `json:"video_url"`
	Format     string `json:"format"`
	Definition string `json:"definition"`
	Height     int    `json:"height"`
	Width      int    `json:"width"`
	Size       int64  `json:"size"`
}

// ItemView is the projection of a RawItem onto the fields this tool consumes.
type ItemView struct {
	CommonAttr *CommonAttr `json:"common_attr"`
	Video      *struct {
		OriginVideo *OriginVideo `json:"origin_video"`
	} `json:"video"`
}

// View decodes the consumed sub-objects of the record.
func (r RawItem) View() (ItemView, error) {
	var view ItemView
	if len(r) == 0 {
		return view, nil
	}
	err := json.Unmarshal(r, &view)
	return view, err
}

// Media returns the origin video descriptor, or nil when the record has none.
func (v ItemView) Media() *OriginVideo {
	if v.Video == nil {
		return nil
	}
	return v.Video.OriginVideo
}

// Page is a single response from the catalog.
type Page struct {
	Items      []RawItem
	HasMore    bool
	NextOffset int
}

// MergedResult is the concatenation of every page fetched for one keyword.
type MergedResult struct {
	Keyword    string    `json:"keyword"`
	Items      []RawItem `json:"effect_item_list"`
	TotalCount int       `json:"total"`
	PageCount  int       `json:"page_count"`
	Partial    bool      `json:"partial"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// AssetDescriptor is one downloadable media asset extracted from a result.
type AssetDescriptor struct {
	SourceItemID string `json:"source_item_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	VideoURL     string `json:"video_url"`
	Format       string `json:"format"`
	QualityLabel string `json:"definition"`
	HeightPx     int    `json:"height"`
	WidthPx      int    `json:"width"`
	SizeBytes    int64  `json:"size"`
}

// OutcomeStatus is the terminal state of one scheduled asset.
type OutcomeStatus string

const (
	StatusDownloaded        OutcomeStatus = "downloaded"
	StatusSkippedLowQuality OutcomeStatus = "skipped_low_quality"
	StatusSkippedExists     OutcomeStatus = "skipped_exists"
	StatusFailed            OutcomeStatus = "failed"
	StatusCancelled         OutcomeStatus = "cancelled"
)

// DownloadOutcome records what happened to one descriptor.
type DownloadOutcome struct {
	Descriptor AssetDescriptor `json:"descriptor"`
	LocalPath  string          `json:"local_path,omitempty"`
	Status     OutcomeStatus   `json:"status"`
	Bytes      int64           `json:"bytes,omitempty"`
	Err        error           `json:"-"`
}

// ErrorMessage returns the retained error text, or "".
func (o DownloadOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// DocumentKind names the two persisted document types.
type DocumentKind string

const (
	KindSearchResult DocumentKind = "search_result"
	KindDescriptors  DocumentKind = "descriptors"
)

// DocumentRecord is the index entry for one persisted JSON document.
type DocumentRecord struct {
	ID        int64        `json:"id"`
	RunID     string       `json:"run_id"`
	Keyword   string       `json:"keyword"`
	Kind      DocumentKind `json:"kind"`
	Path      string       `json:"path"`
	ItemCount int          `json:"item_count"`
	Partial   bool         `json:"partial"`
	CreatedAt time.Time    `json:"created_at"`
}

// OutcomeCounts tallies outcomes by status.
type OutcomeCounts struct {
	Downloaded        int
	SkippedLowQuality int
	SkippedExists     int
	Failed            int
	Cancelled         int
	Bytes             int64
}

// Tally counts a batch of outcomes.
func Tally(outcomes []DownloadOutcome) OutcomeCounts {
	var c OutcomeCounts
	for _, o := range outcomes {
		switch o.Status {
		case StatusDownloaded:
			c.Downloaded++
			c.Bytes += o.Bytes
		case StatusSkippedLowQuality:
			c.SkippedLowQuality++
		case StatusSkippedExists:
			c.SkippedExists++
		case StatusFailed:
			c.Failed++
		case StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

// KeywordReport summarizes one keyword in a batch.
type KeywordReport struct {
	Keyword         string
	Items           int
	Descriptors     int
	Partial         bool
	ResultPath      string
	DescriptorsPath string
	Downloads       OutcomeCounts
	Outcomes        []DownloadOutcome
	// Warning holds the pagination error behind a partial result.
	Warning error
	Err     error
}

// BatchReport summarizes a multi-keyword run.
type BatchReport struct {
	RunID       string
	Keywords    []KeywordReport
	StartedAt   time.Time
	CompletedAt time.Time
}

// Failed reports how many keywords ended with an error.
func (b BatchReport) Failed() int {
	n := 0
	for _, k := range b.Keywords {
		if k.Err != nil {
			n++
		}
	}
	return n
}
