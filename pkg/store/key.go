package store

import (
	"strings"
)

// KeyPrefix is the namespace of every key written by the report store.
const KeyPrefix = "hapi:report"

// RunsKey holds the run ids, newest first.
const RunsKey = KeyPrefix + ":runs"

// ReportKey identifies one stored theme table of one run.
type ReportKey struct {
	// RunID is the id of the report run.
	RunID string

	// Theme is the HAPI theme (e.g., "food_security").
	Theme string
}

// String generates a deterministic key string.
// Format: hapi:report:<run_id>:<theme>
//
// Example:
//
//	hapi:report:5b1f...:food_security
func (k ReportKey) String() string {
	parts := []string{KeyPrefix, sanitize(k.RunID)}
	if theme := sanitize(k.Theme); theme != "" {
		parts = append(parts, theme)
	}
	return strings.Join(parts, ":")
}

// ThemesKey returns the list key holding the themes of a run, in publish order.
func ThemesKey(runID string) string {
	return KeyPrefix + ":" + sanitize(runID) + ":themes"
}

// sanitize keeps keys splittable on ':'.
func sanitize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ":", "_")
}
