// Package analyzer runs page checks: it fetches a stored URL, extracts the
// SEO fields from the returned HTML, and records the result as a check.
package analyzer
