// Package report drives the coverage report: it fetches theme coverage and
// resource metadata from HAPI and renders one Markdown table per theme.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sternrassler/hapi-coverage/pkg/client"
	"github.com/Sternrassler/hapi-coverage/pkg/coverage"
	"github.com/Sternrassler/hapi-coverage/pkg/markdown"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultThemes is the theme list of the coverage report, in output order.
var DefaultThemes = []string{"3w", "population", "food_security", "national_risk", "humanitarian_needs"}

// Resource metadata fields.
const (
	FieldDatasetTitle = "dataset_title"
	FieldHDXLink      = "hdx_link"
	FieldProviderName = "dataset_hdx_provider_name"
)

const (
	summaryHeading     = "coverage"
	defaultTableAlign  = string(markdown.AlignCenter)
	tableHeaderCountry = "Country"
	tableHeaderDataset = "Dataset"
	tableHeaderSource  = "Source"
)

// URLBuilder builds the endpoint URLs the driver pages through.
type URLBuilder interface {
	ThemeURL(theme string) string
	ResourceURL(hdxID string, window client.DateWindow) string
}

// PageFetcher returns the data records of paginated endpoints.
type PageFetcher interface {
	FetchAll(ctx context.Context, baseURL string) ([]gjson.Result, error)
	FetchFirst(ctx context.Context, baseURL string) ([]gjson.Result, error)
}

// Sink receives every theme report once its table is complete.
type Sink interface {
	Publish(ctx context.Context, r ThemeReport) error
}

// Config holds driver configuration.
type Config struct {
	// Themes are processed in order. Empty means DefaultThemes.
	Themes []string
	// Window bounds the update date of resource lookups.
	Window client.DateWindow
	// Align is handed to the table renderer.
	Align string
}

// DefaultConfig returns the configuration of the coverage report.
func DefaultConfig() Config {
	return Config{
		Themes: append([]string(nil), DefaultThemes...),
		Window: client.DefaultDateWindow(),
		Align:  defaultTableAlign,
	}
}

// Row is one line of a theme table.
type Row struct {
	Country string `json:"country"`
	Dataset string `json:"dataset"`
	Source  string `json:"source"`
}

// ThemeReport is the finished table of one theme.
type ThemeReport struct {
	Theme    string
	Rows     []Row
	Markdown string
}

// MissingFieldError is returned when resource metadata lacks a field or record.
type MissingFieldError struct {
	ResourceID string
	Field      string
}

func (e *MissingFieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("resource %s: no metadata record", e.ResourceID)
	}
	return fmt.Sprintf("resource %s: missing field %q", e.ResourceID, e.Field)
}

// Driver runs the report.
type Driver struct {
	urls     URLBuilder
	fetcher  PageFetcher
	config   Config
	sinks    []Sink
	coverage *coverage.Coverage
	logger   zerolog.Logger
}

// NewDriver creates a driver. sinks may be empty.
func NewDriver(urls URLBuilder, fetcher PageFetcher, config Config, logger zerolog.Logger, sinks ...Sink) (*Driver, error) {
	if urls == nil || fetcher == nil {
		return nil, fmt.Errorf("url builder and fetcher are required")
	}
	if len(config.Themes) == 0 {
		config.Themes = append([]string(nil), DefaultThemes...)
	}
	if config.Window == (client.DateWindow{}) {
		config.Window = client.DefaultDateWindow()
	}
	if _, err := markdown.ParseAlignment(config.Align); err != nil {
		return nil, err
	}

	return &Driver{
		urls:     urls,
		fetcher:  fetcher,
		config:   config,
		sinks:    sinks,
		coverage: coverage.New(),
		logger:   logger.With().Str("component", "report").Logger(),
	}, nil
}

// Coverage returns the coverage aggregated so far.
func (d *Driver) Coverage() *coverage.Coverage {
	return d.coverage
}

// Run builds the report of every configured theme and writes each one to w
// as soon as its table is complete. The first error stops the run.
func (d *Driver) Run(ctx context.Context, w io.Writer) ([]ThemeReport, error) {
	reports := make([]ThemeReport, 0, len(d.config.Themes))

	for _, theme := range d.config.Themes {
		r, err := d.BuildTheme(ctx, theme)
		if err != nil {
			return reports, err
		}

		if err := Write(w, r); err != nil {
			return reports, fmt.Errorf("write theme %s: %w", theme, err)
		}

		for _, sink := range d.sinks {
			if err := sink.Publish(ctx, r); err != nil {
				return reports, fmt.Errorf("publish theme %s: %w", theme, err)
			}
		}

		reports = append(reports, r)
	}

	return reports, nil
}

// BuildTheme fetches and aggregates one theme and renders its table.
func (d *Driver) BuildTheme(ctx context.Context, theme string) (ThemeReport, error) {
	start := time.Now()
	d.logger.Info().Str("theme", theme).Msg("Getting results for theme")

	rows, err := d.fetcher.FetchAll(ctx, d.urls.ThemeURL(theme))
	if err != nil {
		return ThemeReport{}, fmt.Errorf("fetch theme %s: %w", theme, err)
	}

	if err := d.coverage.AddRows(theme, rows); err != nil {
		return ThemeReport{}, err
	}

	countries := d.coverage.Theme(theme)
	r := ThemeReport{Theme: theme, Rows: make([]Row, 0, countries.Len())}

	for _, country := range countries.Names() {
		row, err := d.buildRow(ctx, country, countries.Resources(country))
		if err != nil {
			return ThemeReport{}, fmt.Errorf("theme %s, country %s: %w", theme, country, err)
		}
		r.Rows = append(r.Rows, row)
	}

	r.Markdown, err = markdown.Render(r.table(), d.config.Align)
	if err != nil {
		return ThemeReport{}, fmt.Errorf("render theme %s: %w", theme, err)
	}

	d.logger.Info().
		Str("theme", theme).
		Int("records", len(rows)).
		Int("countries", len(r.Rows)).
		Dur("duration", time.Since(start)).
		Msg("Theme complete")

	return r, nil
}

// buildRow looks up every resource of a country. A title is appended only
// when it differs from the previous resource's title, so repeats that are
// not adjacent show up again.
func (d *Driver) buildRow(ctx context.Context, country string, resources []string) (Row, error) {
	var dataset, source strings.Builder
	prevTitle := ""

	for _, id := range resources {
		meta, err := d.resourceMetadata(ctx, id)
		if err != nil {
			return Row{}, err
		}

		if meta.title != prevTitle {
			prevTitle = meta.title
			fmt.Fprintf(&dataset, " [%s](%s)", meta.title, meta.link)
			fmt.Fprintf(&source, " %s", meta.provider)
		}
	}

	return Row{Country: country, Dataset: dataset.String(), Source: source.String()}, nil
}

type resourceMeta struct {
	title, link, provider string
}

func (d *Driver) resourceMetadata(ctx context.Context, id string) (resourceMeta, error) {
	records, err := d.fetcher.FetchFirst(ctx, d.urls.ResourceURL(id, d.config.Window))
	if err != nil {
		return resourceMeta{}, fmt.Errorf("fetch resource %s: %w", id, err)
	}
	if len(records) == 0 {
		return resourceMeta{}, &MissingFieldError{ResourceID: id}
	}

	rec := records[0]
	var meta resourceMeta
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{FieldDatasetTitle, &meta.title},
		{FieldHDXLink, &meta.link},
		{FieldProviderName, &meta.provider},
	} {
		v := rec.Get(f.name)
		if !v.Exists() {
			return resourceMeta{}, &MissingFieldError{ResourceID: id, Field: f.name}
		}
		*f.dst = v.String()
	}

	return meta, nil
}

func (r ThemeReport) table() [][]any {
	out := make([][]any, 0, len(r.Rows)+1)
	out = append(out, []any{tableHeaderCountry, tableHeaderDataset, tableHeaderSource})
	for _, row := range r.Rows {
		out = append(out, []any{row.Country, row.Dataset, row.Source})
	}
	return out
}

// Write prints a theme report as a level-2 heading followed by its table.
func Write(w io.Writer, r ThemeReport) error {
	_, err := fmt.Fprintf(w, "## %s\n%s\n", r.Theme, r.Markdown)
	return err
}

// WriteSummary prints the country x theme matrix of everything aggregated.
func (d *Driver) WriteSummary(w io.Writer) error {
	table, err := markdown.Render(d.coverage.Matrix(), d.config.Align)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	_, err = fmt.Fprintf(w, "## %s\n%s\n", summaryHeading, table)
	return err
}
