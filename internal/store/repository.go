package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateURL signals that a URL with the same normalized name exists.
	ErrDuplicateURL = errors.New("url already exists")
)

// Repository hands out request-scoped sessions over the backing store.
type Repository interface {
	// Acquire reserves a session. Callers must Release it on every path.
	Acquire(ctx context.Context) (Session, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases all backend resources.
	Close()
}

// Session is a single acquired connection. Every write commits immediately.
type Session interface {
	// ListURLs returns all URLs, newest first.
	ListURLs(ctx context.Context) ([]URL, error)
	// ListLatestChecks returns the newest check of every checked URL.
	ListLatestChecks(ctx context.Context) ([]Check, error)
	// GetURL loads a URL by id or returns ErrNotFound.
	GetURL(ctx context.Context, id int64) (URL, error)
	// FindURLByName loads a URL by normalized name or returns ErrNotFound.
	FindURLByName(ctx context.Context, name string) (URL, error)
	// ListChecks returns every check for a URL, newest first.
	ListChecks(ctx context.Context, urlID int64) ([]Check, error)
	// CreateURL inserts a URL or returns ErrDuplicateURL.
	CreateURL(ctx context.Context, name string) (URL, error)
	// CreateCheck inserts a check and returns it with ID and CreatedAt set.
	CreateCheck(ctx context.Context, check Check) (Check, error)
	// Release returns the session to its repository. Safe to call twice.
	Release()
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
