package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticStatus Status

func (s staticStatus) Status() Status { return Status(s) }

func TestStatusEndpoint(t *testing.T) {
	provider := staticStatus{
		Domain:       "https://docs.example.com",
		QueueLength:  12,
		Visited:      40,
		UniqueURLs:   52,
		TotalCrawled: 40,
		InFlight:     3,
	}
	server := NewServer(":0", provider, zap.NewNop())
	ts := httptest.NewServer(server.srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, Status(provider), got)
}

func TestMetricsEndpoint(t *testing.T) {
	server := NewServer(":0", staticStatus{}, zap.NewNop())
	ts := httptest.NewServer(server.srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
