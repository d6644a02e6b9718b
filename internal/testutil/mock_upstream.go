// Package testutil provides testing utilities for the card gateway.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PNGHeader is the eight byte PNG signature used as fake card content.
var PNGHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// SearchResult is one scripted character search candidate.
type SearchResult struct {
	ID     int64  `json:"ID"`
	Name   string `json:"Name"`
	Server string `json:"Server"`
}

// MockUpstream is a configurable server playing both remote collaborators:
// the character search API and the card render backend.
type MockUpstream struct {
	server *httptest.Server
	mu     sync.RWMutex

	// searchScript holds the result list returned by each successive search call.
	// Once exhausted, the last entry repeats.
	searchScript [][]SearchResult
	searchStatus int

	renderDelay  time.Duration
	renderStatus int
	healthStatus int

	// Tracking
	SearchCount  int
	RenderCount  int
	HealthCount  int
	LastSearch   map[string]string
	RenderedPath []string
}

// NewMockUpstream creates a new mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		searchStatus: http.StatusOK,
		renderStatus: http.StatusOK,
		healthStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/character/search", mock.handleSearch)
	mux.HandleFunc("/healthz", mock.handleHealth)
	mux.HandleFunc("/cards/", mock.handleRender)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// SetSearchResults scripts the search responses, one list per call.
func (m *MockUpstream) SetSearchResults(script ...[]SearchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchScript = script
}

// SetSearchStatus makes the search endpoint answer with status.
func (m *MockUpstream) SetSearchStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchStatus = status
}

// SetRenderStatus makes the render endpoints answer with status.
func (m *MockUpstream) SetRenderStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderStatus = status
}

// SetRenderDelay delays every render response.
func (m *MockUpstream) SetRenderDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderDelay = d
}

// SetHealthStatus makes the health endpoint answer with status.
func (m *MockUpstream) SetHealthStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
}

// GetSearchCount returns the number of search calls served.
func (m *MockUpstream) GetSearchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SearchCount
}

// GetRenderCount returns the number of render calls served.
func (m *MockUpstream) GetRenderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RenderCount
}

// GetHealthCount returns the number of health calls served.
func (m *MockUpstream) GetHealthCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.HealthCount
}

func (m *MockUpstream) handleSearch(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	call := m.SearchCount
	m.SearchCount++
	m.LastSearch = map[string]string{
		"name":        r.URL.Query().Get("name"),
		"server":      r.URL.Query().Get("server"),
		"private_key": r.URL.Query().Get("private_key"),
	}
	status := m.searchStatus
	var results []SearchResult
	if n := len(m.searchScript); n > 0 {
		if call >= n {
			call = n - 1
		}
		results = m.searchScript[call]
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
		w.Write([]byte(`{"Error": true, "Message": "upstream failure"}`))
		return
	}

	if results == nil {
		results = []SearchResult{}
	}
	json.NewEncoder(w).Encode(map[string]any{
		"Pagination": map[string]int{"Page": 1, "Results": len(results)},
		"Results":    results,
	})
}

func (m *MockUpstream) handleHealth(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.HealthCount++
	status := m.healthStatus
	m.mu.Unlock()

	w.WriteHeader(status)
}

// handleRender serves /cards/{id}.png and /cards/equipment/{id}.png. The body is the
// PNG signature followed by the path, so each card is distinguishable.
func (m *MockUpstream) handleRender(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RenderCount++
	m.RenderedPath = append(m.RenderedPath, r.URL.Path)
	status := m.renderStatus
	delay := m.renderDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	rest := strings.TrimPrefix(r.URL.Path, "/cards/")
	rest = strings.TrimPrefix(rest, "equipment/")
	if _, err := strconv.ParseInt(strings.TrimSuffix(rest, ".png"), 10, 64); err != nil {
		http.Error(w, fmt.Sprintf("bad card path %q", r.URL.Path), http.StatusBadRequest)
		return
	}

	if status != http.StatusOK {
		http.Error(w, "render failed", status)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(CardBytes(r.URL.Path))
}

// CardBytes returns the fake card content the mock serves for path.
func CardBytes(path string) []byte {
	return append(append([]byte{}, PNGHeader...), []byte(path)...)
}
