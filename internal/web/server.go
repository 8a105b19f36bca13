// Package web exposes the HTML interface of the page analyzer.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/id/uuid"
	"github.com/JakeFAU/page-analyzer/internal/metrics"
	"github.com/JakeFAU/page-analyzer/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"index.html", "urls.html", "url.html", "404.html", "500.html", "503.html"}

// Checker runs a check for a stored URL.
type Checker interface {
	Check(ctx context.Context, session store.Session, urlID int64) (store.Check, error)
}

// IDGenerator mints request ids.
type IDGenerator interface {
	NewID() string
}

// Config controls cookies and request limits.
type Config struct {
	SessionName    string
	SessionSecret  string
	SecureCookie   bool
	RequestTimeout time.Duration
	// RequestIDs defaults to UUIDv7 ids.
	RequestIDs IDGenerator
}

// Server wires HTTP handlers to the repository and the check service.
type Server struct {
	router      chi.Router
	repo        store.Repository
	checker     Checker
	cookies     sessions.Store
	sessionName string
	templates   map[string]*template.Template
	ids         IDGenerator
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(repo store.Repository, checker Checker, cfg Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if cfg.SessionName == "" {
		cfg.SessionName = "page_analyzer"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.RequestIDs == nil {
		cfg.RequestIDs = uuid.New()
	}

	tmpls, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	cookies := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		repo:        repo,
		checker:     checker,
		cookies:     cookies,
		sessionName: cfg.SessionName,
		templates:   tmpls,
		ids:         cfg.RequestIDs,
		logger:      logger.Named("web"),
	}

	timeoutBody, err := s.renderStatic("503.html")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout, timeoutBody))

	r.NotFound(s.notFound)

	r.Get("/healthcheck", s.healthcheck)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", s.index)
	r.Route("/urls", func(r chi.Router) {
		r.Get("/", s.listURLs)
		r.Post("/", s.createURL)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.showURL)
			r.Post("/checks", s.checkURL)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
	}
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		out[page] = t
	}
	return out, nil
}
