// Package testsupport provides a fake effect catalog for tests.
package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"effectharvest/internal/core/domain"
)

const searchPath = "/artist/v1/effect/search"

// Video is the media part of a fake catalog record.
type Video struct {
	URL        string
	Format     string
	Definition string
	Height     int
	Width      int
	Size       int64
}

// Item builds one catalog record. A nil video produces a record without media.
func Item(id, title string, video *Video) domain.RawItem {
	record := map[string]any{
		"common_attr": map[string]any{
			"id":          id,
			"title":       title,
			"description": "desc " + id,
		},
	}
	if video != nil {
		record["video"] = map[string]any{
			"origin_video": map[string]any{
				"video_url":  video.URL,
				"format":     video.Format,
				"definition": video.Definition,
				"height":     video.Height,
				"width":      video.Width,
				"size":       video.Size,
			},
		}
	}
	data, err := json.Marshal(record)
	if err != nil {
		panic(err)
	}
	return domain.RawItem(data)
}

// Page is a canned response served when a search arrives at Offset.
type Page struct {
	Offset     int
	Items      []domain.RawItem
	HasMore    bool
	NextOffset int
	// Status overrides the HTTP status when non-zero.
	Status int
	// Body replaces the whole response body when non-empty.
	Body string
}

// SearchRequest is what the fake recorded for one search call.
type SearchRequest struct {
	Query  map[string]string
	Cookie string
	Body   map[string]any
}

// Catalog is an httptest server speaking the effect search protocol plus a
// plain media endpoint under /media/{name}.
type Catalog struct {
	Server *httptest.Server

	mu        sync.Mutex
	pages     map[string]map[int]Page
	media     map[string][]byte
	searches  []SearchRequest
	mediaHits int
}

// NewCatalog starts a fake catalog that is closed when the test ends.
func NewCatalog(t testing.TB) *Catalog {
	t.Helper()
	c := &Catalog{
		pages: map[string]map[int]Page{},
		media: map[string][]byte{},
	}
	r := mux.NewRouter()
	r.HandleFunc(searchPath, c.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/media/{name}", c.handleMedia).Methods(http.MethodGet)
	c.Server = httptest.NewServer(r)
	t.Cleanup(c.Server.Close)
	return c
}

// SearchURL is the base URL for the catalog client.
func (c *Catalog) SearchURL() string {
	return c.Server.URL + searchPath
}

// AddPages registers canned pages for keyword.
func (c *Catalog) AddPages(keyword string, pages ...Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byOffset, ok := c.pages[keyword]
	if !ok {
		byOffset = map[int]Page{}
		c.pages[keyword] = byOffset
	}
	for _, p := range pages {
		byOffset[p.Offset] = p
	}
}

// AddMedia serves body at /media/name and returns its URL.
func (c *Catalog) AddMedia(name string, body []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.media[name] = body
	return c.MediaURL(name)
}

// MediaURL returns the URL for name whether or not it is registered.
func (c *Catalog) MediaURL(name string) string {
	return fmt.Sprintf("%s/media/%s", c.Server.URL, name)
}

// Searches returns the recorded search requests in arrival order.
func (c *Catalog) Searches() []SearchRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SearchRequest, len(c.searches))
	copy(out, c.searches)
	return out
}

// MediaHits counts requests made to the media endpoint.
func (c *Catalog) MediaHits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaHits
}

func (c *Catalog) handleSearch(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	query := map[string]string{}
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}

	keyword, _ := body["query"].(string)
	offsetValue, _ := body["offset"].(float64)
	offset := int(offsetValue)

	c.mu.Lock()
	c.searches = append(c.searches, SearchRequest{Query: query, Cookie: r.Header.Get("Cookie"), Body: body})
	page, ok := c.pages[keyword][offset]
	c.mu.Unlock()

	if !ok {
		page = Page{Offset: offset}
	}
	if page.Status != 0 {
		w.WriteHeader(page.Status)
		_, _ = io.WriteString(w, page.Body)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if page.Body != "" {
		_, _ = io.WriteString(w, page.Body)
		return
	}
	items := page.Items
	if items == nil {
		items = []domain.RawItem{}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ret":    "0",
		"errmsg": "",
		"data": map[string]any{
			"effect_item_list": items,
			"has_more":         page.HasMore,
			"next_offset":      page.NextOffset,
		},
	})
}

func (c *Catalog) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	c.mu.Lock()
	c.mediaHits++
	body, ok := c.media[name]
	c.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	_, _ = w.Write(body)
}
