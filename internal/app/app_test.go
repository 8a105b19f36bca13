package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/config"
	publishermemory "github.com/JakeFAU/page-analyzer/internal/publisher/memory"
)

// MockCloser mocks the Closer interface.
type MockCloser struct {
	mock.Mock
}

// Close satisfies the Closer interface for the mock.
func (m *MockCloser) Close() error {
	args := m.Called()
	return args.Error(0)
}

func memoryConfig() config.Config {
	return config.Config{
		Server:    config.ServerConfig{Port: 8000, ShutdownTimeoutSeconds: 2},
		Session:   config.SessionConfig{Secret: "test-secret", Name: "page_analyzer"},
		DB:        config.DBConfig{Driver: config.DriverMemory},
		HTTP:      config.HTTPConfig{TimeoutSeconds: 2, UserAgent: "page-analyzer-test"},
		Snapshots: config.SnapshotsConfig{Backend: config.SnapshotsMemory, Prefix: "checks"},
	}
}

func TestNewWithMemoryConfig(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NotNil(t, a.Repository())
	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "App is running", string(body))
}

func TestNewWithLocalSnapshots(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Snapshots = config.SnapshotsConfig{Backend: config.SnapshotsLocal, BaseDir: t.TempDir()}
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Session.Secret = ""
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.secret")
}

func TestNewPostgresUnreachable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := memoryConfig()
	cfg.DB = config.DBConfig{
		Driver:   config.DriverPostgres,
		DSN:      fmt.Sprintf("postgres://user:pass@%s/pages?connect_timeout=1", addr),
		MaxConns: 1,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = New(ctx, cfg, nil)
	require.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthcheck")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestCloseClosesResourcesNewestFirst(t *testing.T) {
	t.Parallel()

	var order []string
	first := &MockCloser{}
	first.On("Close").Return(nil).Run(func(mock.Arguments) { order = append(order, "first") })
	second := &MockCloser{}
	second.On("Close").Return(errors.New("flush failed")).Run(func(mock.Arguments) { order = append(order, "second") })

	a := &App{logger: zap.NewNop()}
	a.addCloser("first", first)
	a.addCloser("second", second)

	err := a.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close second")
	assert.Equal(t, []string{"second", "first"}, order)
	first.AssertExpectations(t)
	second.AssertExpectations(t)

	// A second Close is a no-op.
	assert.NoError(t, a.Close())
}

func TestOpenPublisherSelectsBackend(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	a := &App{cfg: cfg, logger: zap.NewNop()}
	pub, err := a.openPublisher(context.Background())
	require.NoError(t, err)
	assert.Nil(t, pub)

	cfg.PubSub.Backend = config.NotificationsMemory
	a = &App{cfg: cfg, logger: zap.NewNop()}
	pub, err = a.openPublisher(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &publishermemory.Publisher{}, pub)
	assert.Empty(t, a.closers)
}
