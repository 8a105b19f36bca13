package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
	"github.com/JakeFAU/page-analyzer/internal/metrics"
	"github.com/JakeFAU/page-analyzer/internal/store"
	"github.com/JakeFAU/page-analyzer/internal/urlutil"
)

const (
	msgURLExists    = "Page already exists"
	msgURLAdded     = "Page successfully added"
	msgCheckOK      = "Page successfully checked"
	msgCheckFailed  = "An error occurred during the check"
	readyzTimeout   = 2 * time.Second
	healthcheckBody = "App is running"
)

func (s *Server) healthcheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(healthcheckBody)); err != nil {
		s.logger.Debug("write healthcheck", zap.Error(err))
	}
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", pageData{})
}

func (s *Server) listURLs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := s.repo.Acquire(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	defer session.Release()

	urls, err := session.ListURLs(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	checks, err := session.ListLatestChecks(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "urls.html", pageData{URLs: store.JoinLatest(urls, checks)})
}

func (s *Server) createURL(w http.ResponseWriter, r *http.Request) {
	input := r.PostFormValue("url")
	if errs := urlutil.Validate(input); len(errs) > 0 {
		metrics.ObserveSubmission(metrics.SubmissionInvalid)
		s.render(w, r, http.StatusUnprocessableEntity, "index.html", pageData{Value: input, Errors: errs})
		return
	}
	name := urlutil.Normalize(input)

	ctx := r.Context()
	session, err := s.repo.Acquire(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	defer session.Release()

	u, created, err := findOrCreateURL(ctx, session, name)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if created {
		metrics.ObserveSubmission(metrics.SubmissionCreated)
		s.addFlash(w, r, FlashSuccess, msgURLAdded)
	} else {
		metrics.ObserveSubmission(metrics.SubmissionExisting)
		s.addFlash(w, r, FlashInfo, msgURLExists)
	}
	http.Redirect(w, r, urlPath(u.ID), http.StatusFound)
}

// findOrCreateURL returns the stored URL for name and whether it was inserted.
// A concurrent insert of the same name is resolved by re-reading the winner.
func findOrCreateURL(ctx context.Context, session store.Session, name string) (store.URL, bool, error) {
	u, err := session.FindURLByName(ctx, name)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.URL{}, false, fmt.Errorf("find url: %w", err)
	}

	u, err = session.CreateURL(ctx, name)
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, store.ErrDuplicateURL) {
		return store.URL{}, false, fmt.Errorf("create url: %w", err)
	}
	u, err = session.FindURLByName(ctx, name)
	if err != nil {
		return store.URL{}, false, fmt.Errorf("reload url: %w", err)
	}
	return u, false, nil
}

func (s *Server) showURL(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.notFound(w, r)
		return
	}

	ctx := r.Context()
	session, err := s.repo.Acquire(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	defer session.Release()

	u, err := session.GetURL(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	checks, err := session.ListChecks(ctx, id)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "url.html", pageData{URL: u, Checks: checks})
}

func (s *Server) checkURL(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.notFound(w, r)
		return
	}

	ctx := r.Context()
	session, err := s.repo.Acquire(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	defer session.Release()

	_, err = s.checker.Check(ctx, session, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.notFound(w, r)
		return
	case errors.Is(err, analyzer.ErrFetch):
		s.addFlash(w, r, FlashDanger, msgCheckFailed)
	case err != nil:
		s.serverError(w, r, err)
		return
	default:
		s.addFlash(w, r, FlashSuccess, msgCheckOK)
	}
	http.Redirect(w, r, urlPath(id), http.StatusFound)
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func urlPath(id int64) string {
	return "/urls/" + strconv.FormatInt(id, 10)
}
