// Package testutil provides testing utilities for the HAPI coverage report.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Row is a single record served inside a page's data array.
type Row map[string]any

// MockHAPI is a configurable mock HAPI server for testing.
// It serves /api/themes/<theme> and /api/resource with offset/limit paging.
type MockHAPI struct {
	server *httptest.Server

	mu        sync.RWMutex
	themes    map[string][]Row
	resources map[string][]Row
	failures  map[string]int

	// Tracking
	RequestCount int
	Requests     []string
}

// NewMockHAPI creates a new mock HAPI server.
func NewMockHAPI() *MockHAPI {
	mock := &MockHAPI{
		themes:    make(map[string][]Row),
		resources: make(map[string][]Row),
		failures:  make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))

	return mock
}

// URL returns the mock server URL.
func (m *MockHAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockHAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Requests = nil
}

// SetTheme configures the coverage rows served for a theme.
func (m *MockHAPI) SetTheme(theme string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.themes[theme] = rows
}

// SetResource configures the metadata rows served for a resource id.
func (m *MockHAPI) SetResource(hdxID string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[hdxID] = rows
}

// FailPath makes every request to path answer with status.
func (m *MockHAPI) FailPath(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = status
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockHAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// CountRequests returns the number of requests whose path equals path.
func (m *MockHAPI) CountRequests(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.Requests {
		if p == path {
			n++
		}
	}
	return n
}

func (m *MockHAPI) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.Requests = append(m.Requests, r.URL.Path)
	status, failing := m.failures[r.URL.Path]
	m.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		return
	}

	q := r.URL.Query()
	if q.Get("output_format") != "json" || q.Get("app_identifier") == "" {
		http.Error(w, `{"detail": "missing output_format or app_identifier"}`, http.StatusBadRequest)
		return
	}

	var rows []Row
	var found bool

	m.mu.RLock()
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/themes/"):
		rows, found = m.themes[strings.TrimPrefix(r.URL.Path, "/api/themes/")]
	case r.URL.Path == "/api/resource":
		rows, found = m.resources[q.Get("hdx_id")], true
	}
	m.mu.RUnlock()

	if !found {
		http.NotFound(w, r)
		return
	}

	WritePage(w, rows, q.Get("offset"), q.Get("limit"))
}

// WritePage writes the offset/limit slice of rows as a {"data": [...]} body.
func WritePage(w http.ResponseWriter, rows []Row, offsetParam, limitParam string) {
	offset, _ := strconv.Atoi(offsetParam)
	limit, err := strconv.Atoi(limitParam)
	if err != nil || limit <= 0 {
		limit = len(rows)
	}

	page := []Row{}
	if offset < len(rows) {
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		page = rows[offset:end]
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"data": page})
}

// CoverageRow builds a theme coverage record.
func CoverageRow(country, resourceID string) Row {
	return Row{
		"location_name":   country,
		"resource_hdx_id": resourceID,
	}
}

// ResourceRow builds a resource metadata record.
func ResourceRow(title, link, provider string) Row {
	return Row{
		"dataset_title":             title,
		"hdx_link":                  link,
		"dataset_hdx_provider_name": provider,
	}
}
