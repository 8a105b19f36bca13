package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/page-analyzer/internal/store"
)

const (
	selectURLs         = `SELECT id, name, created_at FROM urls ORDER BY id DESC`
	selectURLByID      = `SELECT id, name, created_at FROM urls WHERE id = $1`
	selectURLByName    = `SELECT id, name, created_at FROM urls WHERE name = $1`
	insertURL          = `INSERT INTO urls (name, created_at) VALUES ($1, $2) RETURNING id`
	checkColumns       = `id, url_id, COALESCE(status_code, 0), COALESCE(h1, ''), COALESCE(title, ''), COALESCE(description, ''), created_at`
	selectLatestChecks = `SELECT DISTINCT ON (url_id) ` + checkColumns + ` FROM url_checks ORDER BY url_id DESC, id DESC`
	selectChecksByURL  = `SELECT ` + checkColumns + ` FROM url_checks WHERE url_id = $1 ORDER BY id DESC`
	insertCheck        = `INSERT INTO url_checks (url_id, status_code, h1, title, description, created_at) ` +
		`VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
)

type session struct {
	q       querier
	release func()
	clock   store.Clock
}

func (s *session) Release() {
	if s.release == nil {
		return
	}
	s.release()
	s.release = nil
}

func (s *session) ListURLs(ctx context.Context) ([]store.URL, error) {
	rows, err := s.q.Query(ctx, selectURLs)
	if err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	defer rows.Close()

	var urls []store.URL
	for rows.Next() {
		var u store.URL
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan url row: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate url rows: %w", err)
	}
	return urls, nil
}

func (s *session) ListLatestChecks(ctx context.Context) ([]store.Check, error) {
	return s.queryChecks(ctx, "list latest checks", selectLatestChecks)
}

func (s *session) ListChecks(ctx context.Context, urlID int64) ([]store.Check, error) {
	return s.queryChecks(ctx, "list checks", selectChecksByURL, urlID)
}

func (s *session) queryChecks(ctx context.Context, op, query string, args ...any) ([]store.Check, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var checks []store.Check
	for rows.Next() {
		var c store.Check
		if err := rows.Scan(
			&c.ID,
			&c.URLID,
			&c.StatusCode,
			&c.H1,
			&c.Title,
			&c.Description,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan check row: %w", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check rows: %w", err)
	}
	return checks, nil
}

func (s *session) GetURL(ctx context.Context, id int64) (store.URL, error) {
	return s.getURL(ctx, "get url", selectURLByID, id)
}

func (s *session) FindURLByName(ctx context.Context, name string) (store.URL, error) {
	return s.getURL(ctx, "find url", selectURLByName, name)
}

func (s *session) getURL(ctx context.Context, op, query string, arg any) (store.URL, error) {
	var u store.URL
	err := s.q.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.URL{}, store.ErrNotFound
		}
		return store.URL{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *session) CreateURL(ctx context.Context, name string) (store.URL, error) {
	u := store.URL{Name: name, CreatedAt: s.clock.Now()}
	if err := s.q.QueryRow(ctx, insertURL, u.Name, u.CreatedAt).Scan(&u.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.URL{}, fmt.Errorf("insert url %q: %w", name, store.ErrDuplicateURL)
		}
		return store.URL{}, fmt.Errorf("insert url: %w", err)
	}
	return u, nil
}

func (s *session) CreateCheck(ctx context.Context, check store.Check) (store.Check, error) {
	check.CreatedAt = s.clock.Now()
	err := s.q.QueryRow(ctx, insertCheck,
		check.URLID,
		check.StatusCode,
		check.H1,
		check.Title,
		check.Description,
		check.CreatedAt,
	).Scan(&check.ID)
	if err != nil {
		return store.Check{}, fmt.Errorf("insert check: %w", err)
	}
	return check, nil
}
