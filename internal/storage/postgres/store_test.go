package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-analyzer/internal/store"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, store.Session) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithPool(mock, fixedClock{now: testNow})
	require.NoError(t, err)
	sess, err := s.Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(sess.Release)
	return mock, sess
}

var checkCols = []string{"id", "url_id", "status_code", "h1", "title", "description", "created_at"}

func TestNewWithPoolRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, fixedClock{})
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, nil)
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{}, fixedClock{})
	require.ErrorContains(t, err, "db.dsn")
}

func TestListURLsNewestFirst(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, created_at FROM urls ORDER BY id DESC")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(int64(2), "https://b.test", testNow).
			AddRow(int64(1), "https://a.test", testNow))

	urls, err := sess.ListURLs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []store.URL{
		{ID: 2, Name: "https://b.test", CreatedAt: testNow},
		{ID: 1, Name: "https://a.test", CreatedAt: testNow},
	}, urls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListURLsQueryError(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery("FROM urls").WillReturnError(errors.New("boom"))

	_, err := sess.ListURLs(context.Background())
	require.ErrorContains(t, err, "list urls")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListLatestChecksUsesDistinctOn(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (url_id)")).
		WillReturnRows(pgxmock.NewRows(checkCols).
			AddRow(int64(9), int64(2), 200, "Bar", "Foo", "Desc", testNow))

	checks, err := sess.ListLatestChecks(context.Background())
	require.NoError(t, err)
	require.Equal(t, []store.Check{{
		ID: 9, URLID: 2, StatusCode: 200, H1: "Bar", Title: "Foo", Description: "Desc", CreatedAt: testNow,
	}}, checks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListChecksFiltersByURL(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM url_checks WHERE url_id = $1 ORDER BY id DESC")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(checkCols).
			AddRow(int64(3), int64(5), 404, "", "", "", testNow).
			AddRow(int64(1), int64(5), 200, "h", "t", "d", testNow))

	checks, err := sess.ListChecks(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	require.Equal(t, int64(3), checks[0].ID)
	require.Equal(t, 404, checks[0].StatusCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetURLNotFound(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM urls WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}))

	_, err := sess.GetURL(context.Background(), 42)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindURLByName(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM urls WHERE name = $1")).
		WithArgs("https://example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(int64(7), "https://example.com", testNow))

	u, err := sess.FindURLByName(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, int64(7), u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateURLReturnsID(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO urls (name, created_at) VALUES ($1, $2) RETURNING id")).
		WithArgs("https://example.com", testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	u, err := sess.CreateURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, store.URL{ID: 11, Name: "https://example.com", CreatedAt: testNow}, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateURLDuplicate(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO urls")).
		WithArgs("https://example.com", testNow).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, Message: "duplicate key"})

	_, err := sess.CreateURL(context.Background(), "https://example.com")
	require.ErrorIs(t, err, store.ErrDuplicateURL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCheckInsertsRow(t *testing.T) {
	t.Parallel()

	mock, sess := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO url_checks (url_id, status_code, h1, title, description, created_at)")).
		WithArgs(int64(3), 200, "Bar", "Foo", "Desc", testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))

	got, err := sess.CreateCheck(context.Background(), store.Check{
		URLID: 3, StatusCode: 200, H1: "Bar", Title: "Foo", Description: "Desc",
	})
	require.NoError(t, err)
	require.Equal(t, int64(21), got.ID)
	require.Equal(t, testNow, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s, err := NewWithPool(mock, fixedClock{now: testNow})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS urls")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s, err := NewWithPool(mock, fixedClock{})
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.ErrorContains(t, s.Ping(context.Background()), "ping postgres")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	calls := 0
	sess := &session{release: func() { calls++ }}
	sess.Release()
	sess.Release()
	require.Equal(t, 1, calls)
}
