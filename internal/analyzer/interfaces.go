package analyzer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// ErrFetch marks a check that failed before anything was persisted because
// the target was unreachable or answered with an error status.
var ErrFetch = errors.New("fetch failed")

// Response is the raw outcome of one outbound GET.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher issues a single GET for a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// BlobStore archives raw page bodies.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher emits check notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Limiter throttles outbound requests.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher fingerprints page bodies.
type Hasher interface {
	Digest(body []byte) string
}

// CheckEvent is published after a check has been stored.
type CheckEvent struct {
	CheckID     int64     `json:"check_id"`
	URLID       int64     `json:"url_id"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	Title       string    `json:"title"`
	H1          string    `json:"h1"`
	Description string    `json:"description"`
	ContentHash string    `json:"content_hash,omitempty"`
	SnapshotURI string    `json:"snapshot_uri,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}
