package store

import "time"

// URL is a submitted site, stored in normalized scheme://host form.
type URL struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Check records one fetch-and-parse attempt against a URL.
type Check struct {
	ID          int64
	URLID       int64
	StatusCode  int
	H1          string
	Title       string
	Description string
	CreatedAt   time.Time
}

// URLSummary pairs a URL with its most recent check, if any.
type URLSummary struct {
	URL       URL
	LastCheck *Check
}

// JoinLatest pairs every URL with the check whose URLID matches it. The
// result keeps the order of urls; checks for unknown URLs are ignored and,
// when several checks share a URLID, the one with the highest ID wins.
func JoinLatest(urls []URL, checks []Check) []URLSummary {
	latest := make(map[int64]Check, len(checks))
	for _, c := range checks {
		if prev, ok := latest[c.URLID]; ok && prev.ID >= c.ID {
			continue
		}
		latest[c.URLID] = c
	}
	out := make([]URLSummary, 0, len(urls))
	for _, u := range urls {
		summary := URLSummary{URL: u}
		if c, ok := latest[u.ID]; ok {
			c := c
			summary.LastCheck = &c
		}
		out = append(out, summary)
	}
	return out
}
