package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"effectharvest/internal/core/domain"
)

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// Options configures the catalog client. Params, Headers and Cookies are
// opaque: they are attached to every request as given.
type Options struct {
	BaseURL string
	Params  map[string]string
	Headers map[string]string
	Cookies map[string]string
	Timeout time.Duration
}

// Client implements ports.Fetcher against the effect search endpoint.
type Client struct {
	baseURL string
	params  url.Values
	headers map[string]string
	cookies []*http.Cookie
	client  *http.Client
}

// NewClient creates a Client. httpClient may be nil.
func NewClient(opts Options, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	params := url.Values{}
	for k, v := range opts.Params {
		params.Set(k, v)
	}

	names := make([]string, 0, len(opts.Cookies))
	for name := range opts.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{Name: name, Value: opts.Cookies[name]})
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Client{
		baseURL: opts.BaseURL,
		params:  params,
		headers: headers,
		cookies: cookies,
		client:  httpClient,
	}
}

type searchOption struct {
	NewSearch bool `json:"cc_web_use_new_search"`
}

type packOptional struct {
	NeedThumb bool   `json:"need_thumb"`
	ThumbOpt  string `json:"thumb_opt"`
}

type searchRequest struct {
	EffectType    int          `json:"effect_type"`
	Query         string       `json:"query"`
	From          string       `json:"from"`
	NeedRecommend bool         `json:"need_recommend"`
	SearchOption  searchOption `json:"search_option"`
	PackOptional  packOptional `json:"pack_optional"`
	Count         int          `json:"count"`
	Offset        int          `json:"offset"`
}

type searchResponse struct {
	Ret    json.RawMessage `json:"ret"`
	ErrMsg string          `json:"errmsg"`
	Data   *struct {
		Items      *[]domain.RawItem `json:"effect_item_list"`
		HasMore    bool              `json:"has_more"`
		NextOffset int               `json:"next_offset"`
	} `json:"data"`
}

// Fetch issues one search request. It makes exactly one attempt.
func (c *Client) Fetch(ctx context.Context, query domain.SearchQuery, offset int) (*domain.Page, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(searchRequest{
		EffectType:    query.EffectType,
		Query:         query.Keyword,
		From:          "normal_search",
		NeedRecommend: query.NeedRecommend,
		SearchOption:  searchOption{NewSearch: true},
		PackOptional:  packOptional{NeedThumb: true, ThumbOpt: `{"is_support_webp":1}`},
		Count:         query.PageSize,
		Offset:        offset,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	endpoint := c.endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "search", URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.TransportError{
			Op:         "search",
			URL:        c.baseURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body: %s", string(snippet)),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "search", URL: c.baseURL, Err: err}
	}
	return decodePage(raw)
}

func (c *Client) endpoint() string {
	if len(c.params) == 0 {
		return c.baseURL
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL
	}
	q := u.Query()
	for k, vs := range c.params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func decodePage(raw []byte) (*domain.Page, error) {
	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.ResponseFormatError{Reason: "body is not a JSON object", Err: err}
	}
	if decoded.Data == nil {
		var details []string
		if ret := strings.Trim(string(decoded.Ret), `"`); ret != "" && ret != "null" {
			details = append(details, "ret "+ret)
		}
		if decoded.ErrMsg != "" {
			details = append(details, fmt.Sprintf("errmsg %q", decoded.ErrMsg))
		}
		reason := "missing data envelope"
		if len(details) > 0 {
			reason += " (" + strings.Join(details, ", ") + ")"
		}
		return nil, &domain.ResponseFormatError{Reason: reason}
	}
	if decoded.Data.Items == nil {
		return nil, &domain.ResponseFormatError{Reason: "missing data.effect_item_list"}
	}
	return &domain.Page{
		Items:      *decoded.Data.Items,
		HasMore:    decoded.Data.HasMore,
		NextOffset: decoded.Data.NextOffset,
	}, nil
}
