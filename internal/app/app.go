// Package app builds the long-lived page analyzer services from configuration
// and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
	"github.com/JakeFAU/page-analyzer/internal/clock/system"
	"github.com/JakeFAU/page-analyzer/internal/config"
	collyfetcher "github.com/JakeFAU/page-analyzer/internal/fetcher/colly"
	"github.com/JakeFAU/page-analyzer/internal/metrics"
	"github.com/JakeFAU/page-analyzer/internal/policy/ratelimit"
	publishermemory "github.com/JakeFAU/page-analyzer/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/page-analyzer/internal/publisher/pubsub"
	"github.com/JakeFAU/page-analyzer/internal/storage/gcs"
	"github.com/JakeFAU/page-analyzer/internal/storage/local"
	"github.com/JakeFAU/page-analyzer/internal/storage/memory"
	"github.com/JakeFAU/page-analyzer/internal/storage/postgres"
	"github.com/JakeFAU/page-analyzer/internal/store"
	"github.com/JakeFAU/page-analyzer/internal/web"
)

// requestSlack is added to the fetch timeout to bound a whole request.
const requestSlack = 15 * time.Second

// Closer releases a resource on shutdown.
type Closer interface {
	Close() error
}

type namedCloser struct {
	name   string
	closer Closer
}

// App holds the shared services for the application.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	repo    store.Repository
	handler http.Handler
	closers []namedCloser
}

// New creates the repository, optional snapshot store and publisher, the
// check service and the HTTP handler. Resources opened before a failure are
// closed before New returns.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			if closeErr := a.Close(); closeErr != nil {
				logger.Warn("cleanup after failed start", zap.Error(closeErr))
			}
		}
	}()

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	a.repo = repo

	blobs, err := a.openBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.HTTP.PerHostRPS,
		Burst: cfg.HTTP.PerHostBurst,
	})
	service := analyzer.NewService(fetcher, blobs, publisher, analyzer.Config{
		SnapshotPrefix:      cfg.Snapshots.Prefix,
		SnapshotContentType: cfg.Snapshots.ContentType,
		Limiter:             limiter,
	}, logger)

	server, err := web.NewServer(repo, service, web.Config{
		SessionName:    cfg.Session.Name,
		SessionSecret:  cfg.Session.Secret,
		SecureCookie:   cfg.Session.SecureCookie,
		RequestTimeout: cfg.FetchTimeout() + requestSlack,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build web server: %w", err)
	}
	a.handler = server.Handler()

	logger.Info("application services initialized",
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("snapshots", cfg.Snapshots.Backend),
		zap.String("notifications", cfg.NotificationBackend()),
	)
	return a, nil
}

func (a *App) openRepository(ctx context.Context) (store.Repository, error) {
	switch a.cfg.DB.Driver {
	case config.DriverMemory:
		a.logger.Info("using in-memory repository; data is lost on restart")
		return memory.NewURLStore(system.New()), nil
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:             a.cfg.DB.DSN,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(a.cfg.DB.MaxConnLifetimeSeconds) * time.Second,
		}, system.New())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if a.cfg.DB.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				pg.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			a.logger.Info("database schema ensured")
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", a.cfg.DB.Driver)
	}
}

func (a *App) openBlobStore(ctx context.Context) (analyzer.BlobStore, error) {
	switch a.cfg.Snapshots.Backend {
	case config.SnapshotsNone, "":
		return nil, nil
	case config.SnapshotsMemory:
		return memory.NewBlobStore(), nil
	case config.SnapshotsLocal:
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Snapshots.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("open local snapshots: %w", err)
		}
		return blobs, nil
	case config.SnapshotsGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("open gcs client: %w", err)
		}
		a.addCloser("gcs", client)
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Snapshots.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("open gcs snapshots: %w", err)
		}
		return blobs, nil
	default:
		return nil, fmt.Errorf("unknown snapshots backend %q", a.cfg.Snapshots.Backend)
	}
}

func (a *App) openPublisher(ctx context.Context) (analyzer.Publisher, error) {
	switch a.cfg.NotificationBackend() {
	case config.NotificationsMemory:
		a.logger.Info("recording check notifications in memory")
		return publishermemory.New(), nil
	case config.NotificationsPubSub:
		pub, err := pubsubpublisher.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("open pubsub publisher: %w", err)
		}
		a.addCloser("pubsub", pub)
		return pub, nil
	default:
		return nil, nil
	}
}

func (a *App) addCloser(name string, c Closer) {
	a.closers = append(a.closers, namedCloser{name: name, closer: c})
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Repository exposes the storage backend, mainly for readiness checks and tests.
func (a *App) Repository() store.Repository {
	return a.repo
}

// Run listens on the configured port and serves until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts the
// server down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	readHeader := time.Duration(a.cfg.Server.ReadHeaderTimeoutSeconds) * time.Second
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeader,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases publishers, blob clients and the repository, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.closer.Close(); err != nil {
			a.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	if a.repo != nil {
		a.repo.Close()
		a.repo = nil
	}
	return errors.Join(errs...)
}
