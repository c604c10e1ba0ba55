package pagination

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

var (
	hapiPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hapi_pages_fetched_total",
		Help: "Total number of HAPI pages fetched",
	})

	hapiRecordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hapi_records_fetched_total",
		Help: "Total number of records read from HAPI pages",
	})
)

// DefaultLimit is the page size of the coverage report
const DefaultLimit = 10000

// Config holds fetcher configuration
type Config struct {
	// Limit is the number of records requested per page
	Limit int
	// Progress receives the request URL and a "Getting results" line per page.
	// Nil means os.Stdout.
	Progress io.Writer
}

// DefaultConfig returns the configuration of the coverage report
func DefaultConfig() Config {
	return Config{
		Limit:    DefaultLimit,
		Progress: os.Stdout,
	}
}

// PageGetter is the interface the HAPI client must implement for single-page fetching
type PageGetter interface {
	// GetJSON fetches url and returns the raw response body
	GetJSON(ctx context.Context, url string) ([]byte, error)
}

// DecodeError is returned when a page body is not a JSON object with a data array
type DecodeError struct {
	URL    string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.URL, e.Reason)
}

// Fetcher walks offset/limit pages sequentially
type Fetcher struct {
	getter PageGetter
	config Config
}

// NewFetcher creates a new fetcher
func NewFetcher(getter PageGetter, config Config) (*Fetcher, error) {
	if getter == nil {
		return nil, fmt.Errorf("page getter is required")
	}
	if config.Limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1 (got %d)", config.Limit)
	}
	if config.Progress == nil {
		config.Progress = os.Stdout
	}

	return &Fetcher{
		getter: getter,
		config: config,
	}, nil
}

// Limit returns the page size.
func (f *Fetcher) Limit() int {
	return f.config.Limit
}

// FetchAll fetches every page of baseURL and returns the concatenated data
// arrays. baseURL must already carry a query string.
func (f *Fetcher) FetchAll(ctx context.Context, baseURL string) ([]gjson.Result, error) {
	start := time.Now()
	var results []gjson.Result

	for idx := 0; ; idx++ {
		data, err := f.fetchPage(ctx, baseURL, idx*f.config.Limit)
		if err != nil {
			return nil, err
		}

		results = append(results, data...)

		// A short page is the last page
		if len(data) < f.config.Limit {
			log.Debug().
				Str("url", baseURL).
				Int("pages", idx+1).
				Int("records", len(results)).
				Dur("duration", time.Since(start)).
				Msg("Fetch complete")
			return results, nil
		}
	}
}

// FetchFirst fetches only the page at offset 0.
func (f *Fetcher) FetchFirst(ctx context.Context, baseURL string) ([]gjson.Result, error) {
	return f.fetchPage(ctx, baseURL, 0)
}

func (f *Fetcher) fetchPage(ctx context.Context, baseURL string, offset int) ([]gjson.Result, error) {
	url := fmt.Sprintf("%s&offset=%d&limit=%d", baseURL, offset, f.config.Limit)
	fmt.Fprintln(f.config.Progress, url)

	body, err := f.getter.GetJSON(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch offset %d: %w", offset, err)
	}
	fmt.Fprintf(f.config.Progress, "Getting results %d to %d\n", offset, offset+f.config.Limit-1)

	data, err := decodePage(url, body)
	if err != nil {
		return nil, err
	}

	hapiPagesFetchedTotal.Inc()
	hapiRecordsFetchedTotal.Add(float64(len(data)))

	return data, nil
}

// decodePage extracts the data array of a page body.
func decodePage(url string, body []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{URL: url, Reason: "invalid JSON"}
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, &DecodeError{URL: url, Reason: "missing data field"}
	}
	if !data.IsArray() {
		return nil, &DecodeError{URL: url, Reason: "data field is not an array"}
	}

	return data.Array(), nil
}
