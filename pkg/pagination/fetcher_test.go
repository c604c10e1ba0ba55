package pagination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/Sternrassler/hapi-coverage/internal/testutil"
	"github.com/Sternrassler/hapi-coverage/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGetter serves total records in offset/limit pages.
type stubGetter struct {
	total int
	urls  []string
	body  func(offset, limit int) string
}

func (s *stubGetter) GetJSON(_ context.Context, rawURL string) ([]byte, error) {
	s.urls = append(s.urls, rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	offset, _ := strconv.Atoi(u.Query().Get("offset"))
	limit, _ := strconv.Atoi(u.Query().Get("limit"))

	if s.body != nil {
		return []byte(s.body(offset, limit)), nil
	}

	items := make([]string, 0, limit)
	for i := offset; i < offset+limit && i < s.total; i++ {
		items = append(items, fmt.Sprintf(`{"n": %d}`, i))
	}
	return []byte(`{"data": [` + strings.Join(items, ",") + `]}`), nil
}

func TestNewFetcher_Validation(t *testing.T) {
	_, err := NewFetcher(nil, DefaultConfig())
	assert.EqualError(t, err, "page getter is required")

	_, err = NewFetcher(&stubGetter{}, Config{Limit: 0})
	assert.EqualError(t, err, "limit must be >= 1 (got 0)")

	f, err := NewFetcher(&stubGetter{}, Config{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, f.Limit())
}

func TestFetchAll_RequestCount(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		limit        int
		wantRequests int
	}{
		{"no records", 0, 10, 1},
		{"single short page", 3, 10, 1},
		{"two pages", 15, 10, 2},
		{"many pages", 101, 10, 11},
		{"exact multiple needs trailing empty page", 20, 10, 3},
		{"limit one", 3, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getter := &stubGetter{total: tt.total}
			f, err := NewFetcher(getter, Config{Limit: tt.limit, Progress: &bytes.Buffer{}})
			require.NoError(t, err)

			rows, err := f.FetchAll(context.Background(), "http://hapi.test/api/themes/3w?output_format=json")
			require.NoError(t, err)

			assert.Len(t, rows, tt.total)
			assert.Len(t, getter.urls, tt.wantRequests)
			for i, row := range rows {
				assert.Equal(t, int64(i), row.Get("n").Int())
			}
		})
	}
}

func TestFetchAll_URLsAndProgress(t *testing.T) {
	getter := &stubGetter{total: 4}
	progress := &bytes.Buffer{}
	f, err := NewFetcher(getter, Config{Limit: 3, Progress: progress})
	require.NoError(t, err)

	_, err = f.FetchAll(context.Background(), "http://hapi.test/api/themes/3w?output_format=json")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http://hapi.test/api/themes/3w?output_format=json&offset=0&limit=3",
		"http://hapi.test/api/themes/3w?output_format=json&offset=3&limit=3",
	}, getter.urls)

	want := "http://hapi.test/api/themes/3w?output_format=json&offset=0&limit=3\n" +
		"Getting results 0 to 2\n" +
		"http://hapi.test/api/themes/3w?output_format=json&offset=3&limit=3\n" +
		"Getting results 3 to 5\n"
	assert.Equal(t, want, progress.String())
}

func TestFetchFirst_SinglePage(t *testing.T) {
	getter := &stubGetter{total: 50}
	f, err := NewFetcher(getter, Config{Limit: 10, Progress: &bytes.Buffer{}})
	require.NoError(t, err)

	rows, err := f.FetchFirst(context.Background(), "http://hapi.test/api/resource?hdx_id=r1")
	require.NoError(t, err)

	assert.Len(t, rows, 10)
	assert.Len(t, getter.urls, 1)
}

func TestFetchAll_DecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"invalid json", `{"data": [`, "invalid JSON"},
		{"missing data", `{"items": []}`, "missing data field"},
		{"data not array", `{"data": {"a": 1}}`, "data field is not an array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getter := &stubGetter{body: func(int, int) string { return tt.body }}
			f, err := NewFetcher(getter, Config{Limit: 10, Progress: &bytes.Buffer{}})
			require.NoError(t, err)

			_, err = f.FetchAll(context.Background(), "http://hapi.test/api/themes/3w?x=1")

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "want *DecodeError, got %v", err)
			assert.Equal(t, tt.reason, decodeErr.Reason)
		})
	}
}

func TestFetchAll_AgainstMockHAPI(t *testing.T) {
	mock := testutil.NewMockHAPI()
	defer mock.Close()

	rows := make([]testutil.Row, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, testutil.CoverageRow("Chad", fmt.Sprintf("r%d", i)))
	}
	mock.SetTheme("population", rows...)

	c, err := client.New(client.Config{BaseURL: mock.URL(), AppIdentifier: "test"})
	require.NoError(t, err)

	f, err := NewFetcher(c, Config{Limit: 3, Progress: &bytes.Buffer{}})
	require.NoError(t, err)

	got, err := f.FetchAll(context.Background(), c.ThemeURL("population"))
	require.NoError(t, err)

	assert.Len(t, got, 7)
	assert.Equal(t, "r6", got[6].Get("resource_hdx_id").String())
	assert.Equal(t, 3, mock.GetRequestCount())
}

func TestFetchAll_HTTPErrorStopsRun(t *testing.T) {
	mock := testutil.NewMockHAPI()
	defer mock.Close()
	mock.FailPath("/api/themes/3w", 500)

	c, err := client.New(client.Config{BaseURL: mock.URL(), AppIdentifier: "test"})
	require.NoError(t, err)

	progress := &bytes.Buffer{}
	f, err := NewFetcher(c, Config{Limit: 3, Progress: progress})
	require.NoError(t, err)

	_, err = f.FetchAll(context.Background(), c.ThemeURL("3w"))
	require.Error(t, err)
	assert.Equal(t, client.ErrorClassServer, client.ClassOf(err))
	assert.Equal(t, 1, mock.GetRequestCount())
	assert.NotContains(t, progress.String(), "Getting results")
}
