package web

import (
	"encoding/gob"
	"net/http"

	"go.uber.org/zap"
)

// Flash categories map onto alert styles.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashDanger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

func init() {
	gob.Register(Flash{})
}

func (s *Server) addFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	session, err := s.cookies.Get(r, s.sessionName)
	if err != nil {
		// A tampered or stale cookie yields a fresh session.
		s.logger.Debug("decode session cookie", zap.Error(err))
	}
	session.AddFlash(Flash{Category: category, Message: message})
	if err := session.Save(r, w); err != nil {
		s.logger.Warn("save flash", zap.Error(err))
	}
}

func (s *Server) popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	session, err := s.cookies.Get(r, s.sessionName)
	if err != nil {
		s.logger.Debug("decode session cookie", zap.Error(err))
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		s.logger.Warn("clear flashes", zap.Error(err))
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}
