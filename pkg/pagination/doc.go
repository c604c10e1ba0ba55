// Package pagination provides offset/limit fetching for paginated HAPI endpoints.
//
// HAPI pages with offset and limit query parameters and does not report a
// total count. The fetcher requests pages one after another, starting at
// offset 0, and treats the first page shorter than the limit as the last.
//
// Example usage:
//
//	fetcher, err := pagination.NewFetcher(hapiClient, pagination.DefaultConfig())
//	rows, err := fetcher.FetchAll(ctx, hapiClient.ThemeURL("population"))
//
// The fetcher:
//   - Appends &offset=<n*limit>&limit=<limit> to the base URL
//   - Writes the request URL and a "Getting results" line per page to Progress
//   - Accumulates the data array of every page
//   - Stops at the first error (no retry, no partial results)
package pagination
