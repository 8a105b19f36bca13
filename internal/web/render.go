package web

import (
	"bytes"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/store"
)

type pageData struct {
	Flashes   []Flash
	RequestID string

	// index
	Value  string
	Errors []string

	// urls
	URLs []store.URLSummary

	// url
	URL    store.URL
	Checks []store.Check
}

// render executes a page inside the layout. Pending flashes are consumed here
// so the cookie update goes out with the headers.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tmpl, ok := s.templates[page]
	if !ok {
		s.logger.Error("unknown template", zap.String("template", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data.Flashes = s.popFlashes(w, r)
	data.RequestID = RequestIDFromContext(r.Context())

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render template", zap.String("template", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("write response", zap.Error(err))
	}
}

// renderStatic executes a page with no request data, for responses written
// outside a handler.
func (s *Server) renderStatic(page string) (string, error) {
	tmpl, ok := s.templates[page]
	if !ok {
		return "", fmt.Errorf("unknown template %s", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", pageData{}); err != nil {
		return "", fmt.Errorf("render %s: %w", page, err)
	}
	return buf.String(), nil
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "404.html", pageData{})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
	s.render(w, r, http.StatusInternalServerError, "500.html", pageData{})
}
