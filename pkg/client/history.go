package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// APIError is a non-2xx response from the history API
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("history api error %d: %s", e.StatusCode, e.Message)
}

// historyResponse is the paged envelope the messages endpoint returns.
// Messages within a page are ordered newest first.
type historyResponse struct {
	Messages []protocol.Message `json:"messages"`
	Total    int                `json:"total"`
}

// HTTPHistoryFetcher loads message pages over the REST API
type HTTPHistoryFetcher struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	logger     *log.Logger
}

// NewHTTPHistoryFetcher creates a fetcher against the given API base
// URL, e.g. "http://localhost:8000/api/v1"
func NewHTTPHistoryFetcher(baseURL string, pageSize int) *HTTPHistoryFetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &HTTPHistoryFetcher{
		baseURL:  baseURL,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetLogger sets a logger for debugging fetches
func (f *HTTPHistoryFetcher) SetLogger(logger *log.Logger) {
	f.logger = logger
}

func (f *HTTPHistoryFetcher) logf(format string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Printf(format, args...)
	}
}

// FetchLatest loads the newest page of a channel's history
func (f *HTTPHistoryFetcher) FetchLatest(ctx context.Context, channelID string) (HistoryPage, error) {
	return f.fetch(ctx, channelID, url.Values{
		"page_size": {strconv.Itoa(f.pageSize)},
	})
}

// FetchPage loads one page of a channel's history. Pages are indexed
// from the oldest message, page 0 being the oldest.
func (f *HTTPHistoryFetcher) FetchPage(ctx context.Context, channelID string, page int) (HistoryPage, error) {
	return f.fetch(ctx, channelID, url.Values{
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(f.pageSize)},
	})
}

func (f *HTTPHistoryFetcher) fetch(ctx context.Context, channelID string, query url.Values) (HistoryPage, error) {
	fullURL := fmt.Sprintf("%s/channels/%s/messages?%s", f.baseURL, url.PathEscape(channelID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("%w: create request: %v", ErrHistoryFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("%w: %v", ErrHistoryFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("%w: read response: %v", ErrHistoryFetch, err)
	}

	if resp.StatusCode >= 400 {
		return HistoryPage{}, fmt.Errorf("%w: %v", ErrHistoryFetch, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		})
	}

	var decoded historyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return HistoryPage{}, fmt.Errorf("%w: unmarshal response: %v", ErrHistoryFetch, err)
	}

	f.logf("fetched %d messages for channel %s (total %d)", len(decoded.Messages), channelID, decoded.Total)

	// The server returns newest first; the window wants oldest first.
	msgs := make([]protocol.Message, len(decoded.Messages))
	for i, m := range decoded.Messages {
		msgs[len(msgs)-1-i] = m
	}

	return HistoryPage{
		Messages:      msgs,
		TotalMessages: decoded.Total,
	}, nil
}

// HTTPHealthProber checks server reachability via the health endpoint
type HTTPHealthProber struct {
	healthURL  string
	httpClient *http.Client
}

// NewHTTPHealthProber creates a prober against the given API base URL
func NewHTTPHealthProber(baseURL string, timeout time.Duration) *HTTPHealthProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPHealthProber{
		healthURL: baseURL + "/health",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Probe reports whether the server answered the health check
func (p *HTTPHealthProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400
}
