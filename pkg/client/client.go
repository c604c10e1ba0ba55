// Package client provides the HAPI HTTP client used to fetch theme coverage
// and resource metadata from the HDX Humanitarian API.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for HAPI client operations.
var (
	hapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hapi_requests_total",
		Help: "Total HAPI requests by endpoint and status",
	}, []string{"endpoint", "status"})

	hapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hapi_request_duration_seconds",
		Help:    "HAPI request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	hapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hapi_errors_total",
		Help: "Total HAPI errors by class",
	}, []string{"class"})
)

// Defaults used when no flag or environment variable overrides them.
const (
	DefaultBaseURL       = "https://stage.hapi-humdata-org.ahconu.org"
	DefaultAppIdentifier = "Y292ZXJhZ2Vfc2NyaXB0OnNpbW9uLmpvaG5zb25AdW4ub3Jn"
	DefaultUserAgent     = "hapi-coverage/0.1.0"

	// Bounds applied to resource lookups.
	DefaultUpdateDateMin = "2020-01-01"
	DefaultUpdateDateMax = "2024-12-31"
)

// Client is the HAPI client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root without the /api suffix.
	BaseURL string

	// AppIdentifier is sent as the app_identifier query parameter on every request.
	AppIdentifier string

	// UserAgent header value.
	UserAgent string

	// Timeout per request. Zero means no timeout.
	Timeout time.Duration
}

// DateWindow bounds the update date of resources returned by ResourceURL.
type DateWindow struct {
	Min string
	Max string
}

// DefaultDateWindow returns the window used by the coverage report.
func DefaultDateWindow() DateWindow {
	return DateWindow{Min: DefaultUpdateDateMin, Max: DefaultUpdateDateMax}
}

// DefaultConfig returns the configuration of the coverage report.
func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		AppIdentifier: DefaultAppIdentifier,
		UserAgent:     DefaultUserAgent,
	}
}

// New creates a new HAPI client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.AppIdentifier == "" {
		return nil, fmt.Errorf("app identifier is required")
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  log.With().Str("component", "hapi-client").Logger(),
	}, nil
}

// ThemeURL returns the coverage endpoint of a theme, without paging parameters.
func (c *Client) ThemeURL(theme string) string {
	q := c.baseQuery()
	return c.baseURL + "/api/themes/" + url.PathEscape(theme) + "?" + q
}

// ResourceURL returns the metadata endpoint of a single resource, without
// paging parameters.
func (c *Client) ResourceURL(hdxID string, window DateWindow) string {
	q := url.Values{}
	q.Set("hdx_id", hdxID)
	q.Set("update_date_min", window.Min)
	q.Set("update_date_max", window.Max)

	return c.baseURL + "/api/resource?" + encodeOrdered(q, "hdx_id", "update_date_min", "update_date_max") + "&" + c.baseQuery()
}

func (c *Client) baseQuery() string {
	q := url.Values{}
	q.Set("output_format", "json")
	q.Set("app_identifier", c.config.AppIdentifier)
	return encodeOrdered(q, "output_format", "app_identifier")
}

// encodeOrdered encodes q in the given key order rather than url.Values'
// sorted order, so URLs read the way the API documentation writes them.
func encodeOrdered(q url.Values, keys ...string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(q.Get(k)))
	}
	return strings.Join(parts, "&")
}

// GetJSON performs a single GET request and returns the response body.
// Transport failures and HTTP status codes >= 400 are returned as errors;
// nothing is retried.
func (c *Client) GetJSON(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		hapiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing HAPI request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		hapiErrorsTotal.WithLabelValues(string(errClass)).Inc()
		hapiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{ErrorClass: errClass, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	status := fmt.Sprintf("%d", resp.StatusCode)

	if resp.StatusCode >= 400 {
		errClass := c.classifyError(resp, nil)
		hapiErrorsTotal.WithLabelValues(string(errClass)).Inc()
		hapiRequestsTotal.WithLabelValues(endpoint, status).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("HAPI request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		hapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		hapiRequestsTotal.WithLabelValues(endpoint, "read_error").Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	hapiRequestsTotal.WithLabelValues(endpoint, status).Inc()
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(startTime)).
		Msg("HAPI request complete")

	return body, nil
}

// classifyError categorizes an error for observability.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp == nil:
		return ""
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
