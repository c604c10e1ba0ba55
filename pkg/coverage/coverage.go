// Package coverage aggregates HAPI theme rows into per-country resource lists.
package coverage

import (
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// Field names read from theme coverage rows.
const (
	FieldLocationName  = "location_name"
	FieldResourceHDXID = "resource_hdx_id"
	FieldAdminLevel    = "admin_level"
)

// MissingFieldError is returned when a row lacks a required field.
type MissingFieldError struct {
	Theme string
	Index int
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("theme %s: row %d: missing field %q", e.Theme, e.Index, e.Field)
}

// Countries maps a country name to its resource ids, in first-appearance order.
type Countries struct {
	names     []string
	resources map[string][]string
	adminMax  map[string]int64
}

func newCountries() *Countries {
	return &Countries{
		resources: make(map[string][]string),
		adminMax:  make(map[string]int64),
	}
}

// Names returns the countries in the order they were first seen.
func (c *Countries) Names() []string {
	return append([]string(nil), c.names...)
}

// Resources returns the de-duplicated resource ids of country.
func (c *Countries) Resources(country string) []string {
	return append([]string(nil), c.resources[country]...)
}

// Has reports whether country was seen.
func (c *Countries) Has(country string) bool {
	_, ok := c.resources[country]
	return ok
}

// AdminLevel returns the highest admin level seen for country, if any row
// carried one.
func (c *Countries) AdminLevel(country string) (int64, bool) {
	lvl, ok := c.adminMax[country]
	return lvl, ok
}

// Len returns the number of countries.
func (c *Countries) Len() int {
	return len(c.names)
}

func (c *Countries) add(country, resourceID string) {
	list, ok := c.resources[country]
	if !ok {
		c.names = append(c.names, country)
	}
	for _, id := range list {
		if id == resourceID {
			return
		}
	}
	c.resources[country] = append(list, resourceID)
}

func (c *Countries) observeAdminLevel(country string, level int64) {
	if cur, ok := c.adminMax[country]; !ok || level > cur {
		c.adminMax[country] = level
	}
}

// Coverage is the mapping theme -> country -> resource ids.
// Themes and countries keep insertion order.
type Coverage struct {
	themes    []string
	byTheme   map[string]*Countries
	countries []string
	seen      map[string]struct{}
}

// New creates an empty coverage map.
func New() *Coverage {
	return &Coverage{
		byTheme: make(map[string]*Countries),
		seen:    make(map[string]struct{}),
	}
}

// Theme returns the countries of theme, creating an empty entry if needed.
func (c *Coverage) Theme(theme string) *Countries {
	countries, ok := c.byTheme[theme]
	if !ok {
		countries = newCountries()
		c.byTheme[theme] = countries
		c.themes = append(c.themes, theme)
	}
	return countries
}

// Themes returns the themes in insertion order.
func (c *Coverage) Themes() []string {
	return append([]string(nil), c.themes...)
}

// AllCountries returns every country seen under any theme, in first-appearance order.
func (c *Coverage) AllCountries() []string {
	return append([]string(nil), c.countries...)
}

// Add records that country has resourceID under theme. Repeated ids are ignored.
func (c *Coverage) Add(theme, country, resourceID string) {
	c.Theme(theme).add(country, resourceID)
	if _, ok := c.seen[country]; !ok {
		c.seen[country] = struct{}{}
		c.countries = append(c.countries, country)
	}
}

// AddRows aggregates fetched theme rows. The theme is registered even when
// rows is empty. The first row without location_name or resource_hdx_id
// aborts with a *MissingFieldError; rows before it stay recorded.
func (c *Coverage) AddRows(theme string, rows []gjson.Result) error {
	countries := c.Theme(theme)

	for i, row := range rows {
		location := row.Get(FieldLocationName)
		if !location.Exists() {
			return &MissingFieldError{Theme: theme, Index: i, Field: FieldLocationName}
		}
		resource := row.Get(FieldResourceHDXID)
		if !resource.Exists() {
			return &MissingFieldError{Theme: theme, Index: i, Field: FieldResourceHDXID}
		}

		c.Add(theme, location.String(), resource.String())

		if lvl := row.Get(FieldAdminLevel); lvl.Exists() && lvl.Type == gjson.Number {
			countries.observeAdminLevel(location.String(), lvl.Int())
		}
	}

	return nil
}

// Matrix returns a rectangular country x theme table: the header row is an
// empty cell followed by the sorted themes; one row per country, sorted, with
// "Yes (adm<N>)", "Yes" or "No" per theme.
func (c *Coverage) Matrix() [][]any {
	themes := c.Themes()
	sort.Strings(themes)
	countries := c.AllCountries()
	sort.Strings(countries)

	header := make([]any, 0, len(themes)+1)
	header = append(header, "")
	for _, theme := range themes {
		header = append(header, theme)
	}

	out := [][]any{header}
	for _, country := range countries {
		row := make([]any, 0, len(themes)+1)
		row = append(row, country)
		for _, theme := range themes {
			row = append(row, c.cell(theme, country))
		}
		out = append(out, row)
	}

	return out
}

func (c *Coverage) cell(theme, country string) string {
	countries, ok := c.byTheme[theme]
	if !ok || !countries.Has(country) {
		return "No"
	}
	if lvl, ok := countries.AdminLevel(country); ok {
		return fmt.Sprintf("Yes (adm%d)", lvl)
	}
	return "Yes"
}
