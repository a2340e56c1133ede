package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheRareFew/sermo-sub001/pkg/protocol"
)

// historyTestServer pages a fixed oldest-first history newest-first,
// the way the messages endpoint does
func historyTestServer(t *testing.T, all []protocol.Message) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		if pageSize <= 0 {
			pageSize = DefaultPageSize
		}

		page := (len(all) - 1) / pageSize
		if raw := r.URL.Query().Get("page"); raw != "" {
			page, _ = strconv.Atoi(raw)
		}

		start := page * pageSize
		if start > len(all) {
			start = len(all)
		}
		end := start + pageSize
		if end > len(all) {
			end = len(all)
		}

		// Newest first within the page
		slice := make([]protocol.Message, 0, end-start)
		for i := end - 1; i >= start; i-- {
			slice = append(slice, all[i])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(historyResponse{Messages: slice, Total: len(all)})
	}))
}

func TestFetchLatestReversesToOldestFirst(t *testing.T) {
	srv := historyTestServer(t, channelHistory("general", 57))
	defer srv.Close()

	fetcher := NewHTTPHistoryFetcher(srv.URL, DefaultPageSize)
	page, err := fetcher.FetchLatest(context.Background(), "general")
	require.NoError(t, err)

	assert.Equal(t, 57, page.TotalMessages)
	require.Len(t, page.Messages, 7)
	assert.Equal(t, "m50", page.Messages[0].ID)
	assert.Equal(t, "m56", page.Messages[6].ID)
}

func TestFetchPageByIndex(t *testing.T) {
	srv := historyTestServer(t, channelHistory("general", 57))
	defer srv.Close()

	fetcher := NewHTTPHistoryFetcher(srv.URL, DefaultPageSize)
	page, err := fetcher.FetchPage(context.Background(), "general", 1)
	require.NoError(t, err)

	require.Len(t, page.Messages, 25)
	assert.Equal(t, "m25", page.Messages[0].ID)
	assert.Equal(t, "m49", page.Messages[24].ID)
}

func TestFetchErrorWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fetcher := NewHTTPHistoryFetcher(srv.URL, DefaultPageSize)
	_, err := fetcher.FetchLatest(context.Background(), "general")
	assert.ErrorIs(t, err, ErrHistoryFetch)
}

func TestFetchUnreachableServer(t *testing.T) {
	fetcher := NewHTTPHistoryFetcher("http://127.0.0.1:1", DefaultPageSize)
	_, err := fetcher.FetchLatest(context.Background(), "general")
	assert.ErrorIs(t, err, ErrHistoryFetch)
}

func TestProbeHealthyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober := NewHTTPHealthProber(srv.URL, 0)
	assert.True(t, prober.Probe(context.Background()))
}

func TestProbeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	prober := NewHTTPHealthProber(srv.URL, 0)
	assert.False(t, prober.Probe(context.Background()))
}

func TestProbeUnreachableServer(t *testing.T) {
	prober := NewHTTPHealthProber("http://127.0.0.1:1", 0)
	assert.False(t, prober.Probe(context.Background()))
}
