package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/hash/sha256"
	"github.com/JakeFAU/page-analyzer/internal/metrics"
	"github.com/JakeFAU/page-analyzer/internal/store"
)

// CheckRecordedEvent names the notification sent after a check is stored.
const CheckRecordedEvent = "check.recorded"

// Config controls the optional side effects of a check.
type Config struct {
	SnapshotPrefix      string
	SnapshotContentType string
	// Limiter is consulted before every fetch when set.
	Limiter Limiter
}

// Service runs checks against stored URLs.
type Service struct {
	fetcher   Fetcher
	blobs     BlobStore
	publisher Publisher
	hasher    Hasher
	cfg       Config
	logger    *zap.Logger
}

// NewService wires a Service. blobs and publisher may be nil to disable
// snapshots and notifications.
func NewService(fetcher Fetcher, blobs BlobStore, publisher Publisher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SnapshotContentType == "" {
		cfg.SnapshotContentType = "text/html; charset=utf-8"
	}
	return &Service{
		fetcher:   fetcher,
		blobs:     blobs,
		publisher: publisher,
		hasher:    sha256.New(),
		cfg:       cfg,
		logger:    logger.Named("analyzer"),
	}
}

// Check fetches the URL identified by urlID and stores one check row.
// Fetch failures and error statuses return an error wrapping ErrFetch and
// leave the store untouched.
func (s *Service) Check(ctx context.Context, session store.Session, urlID int64) (store.Check, error) {
	start := time.Now()
	check, err := s.check(ctx, session, urlID)
	outcome := metrics.CheckSuccess
	switch {
	case errors.Is(err, ErrFetch):
		outcome = metrics.CheckFetchError
	case err != nil:
		outcome = metrics.CheckError
	}
	metrics.ObserveCheck(outcome, time.Since(start))
	return check, err
}

func (s *Service) check(ctx context.Context, session store.Session, urlID int64) (store.Check, error) {
	target, err := session.GetURL(ctx, urlID)
	if err != nil {
		return store.Check{}, fmt.Errorf("load url %d: %w", urlID, err)
	}

	if s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx, target.Name); err != nil {
			return store.Check{}, fmt.Errorf("%w: %w", ErrFetch, err)
		}
	}

	resp, err := s.fetcher.Fetch(ctx, target.Name)
	if err != nil {
		s.logger.Warn("fetch failed", zap.String("url", target.Name), zap.Error(err))
		return store.Check{}, fmt.Errorf("%w: %s: %w", ErrFetch, target.Name, err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn("fetch returned error status",
			zap.String("url", target.Name),
			zap.Int("status", resp.StatusCode),
		)
		return store.Check{}, fmt.Errorf("%w: %s: status %d", ErrFetch, target.Name, resp.StatusCode)
	}

	page, err := Parse(resp.Body)
	if err != nil {
		return store.Check{}, err
	}

	check, err := session.CreateCheck(ctx, store.Check{
		URLID:       target.ID,
		StatusCode:  resp.StatusCode,
		H1:          page.H1,
		Title:       page.Title,
		Description: page.Description,
	})
	if err != nil {
		return store.Check{}, fmt.Errorf("store check: %w", err)
	}

	s.logger.Info("check stored",
		zap.Int64("url_id", target.ID),
		zap.Int64("check_id", check.ID),
		zap.Int("status", check.StatusCode),
		zap.Duration("fetch_duration", resp.Duration),
	)

	snapshotURI := s.snapshot(ctx, check, resp.Body)
	s.notify(ctx, target, check, resp.Body, snapshotURI)
	return check, nil
}

func (s *Service) snapshot(ctx context.Context, check store.Check, body []byte) string {
	if s.blobs == nil {
		return ""
	}
	key := path.Join(s.cfg.SnapshotPrefix,
		strconv.FormatInt(check.URLID, 10),
		strconv.FormatInt(check.ID, 10)+".html")
	uri, err := s.blobs.PutObject(ctx, key, s.cfg.SnapshotContentType, bytes.NewReader(body))
	if err != nil {
		metrics.ObserveSideEffectFailure("snapshot")
		s.logger.Error("snapshot failed", zap.Int64("check_id", check.ID), zap.Error(err))
		return ""
	}
	return uri
}

func (s *Service) notify(ctx context.Context, target store.URL, check store.Check, body []byte, snapshotURI string) {
	if s.publisher == nil {
		return
	}
	event := CheckEvent{
		CheckID:     check.ID,
		URLID:       target.ID,
		URL:         target.Name,
		StatusCode:  check.StatusCode,
		Title:       check.Title,
		H1:          check.H1,
		Description: check.Description,
		ContentHash: s.hasher.Digest(body),
		SnapshotURI: snapshotURI,
		CheckedAt:   check.CreatedAt,
	}
	if _, err := s.publisher.Publish(ctx, CheckRecordedEvent, event); err != nil {
		metrics.ObserveSideEffectFailure("publish")
		s.logger.Error("publish failed", zap.Int64("check_id", check.ID), zap.Error(err))
	}
}
