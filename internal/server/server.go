// Package server exposes the form service to the mini-app over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
	"github.com/amcolab/sell-bot/internal/store"
	"github.com/amcolab/sell-bot/internal/submission"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

const (
	HeaderSessionID = "X-Session-ID"
	HeaderUserID    = "X-User-ID"
)

type Deps struct {
	Store     *store.Store
	Engine    *form.Engine
	Validator *form.Validator
	Quoter    *pricing.Quoter
	Submitter submission.Submitter
	Notices   *Notices
	Logger    logger.Logger
	// LoginEnabled is false when no messaging application id is configured;
	// submissions then go out without a verified user.
	LoginEnabled bool
}

type Server struct {
	store        *store.Store
	engine       *form.Engine
	validator    *form.Validator
	tax          *taxonomy.Taxonomy
	quoter       *pricing.Quoter
	submitter    submission.Submitter
	notices      *Notices
	log          logger.Logger
	loginEnabled bool
}

func New(deps Deps) *Server {
	notices := deps.Notices
	if notices == nil {
		notices = NewNotices()
	}
	return &Server{
		store:        deps.Store,
		engine:       deps.Engine,
		validator:    deps.Validator,
		tax:          deps.Engine.Taxonomy(),
		quoter:       deps.Quoter,
		submitter:    deps.Submitter,
		notices:      notices,
		log:          deps.Logger.Named("server"),
		loginEnabled: deps.LoginEnabled,
	}
}

// Handler routes every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/form", s.session(s.handleGetForm))
	mux.HandleFunc("PATCH /api/form", s.session(s.handleEdit))
	mux.HandleFunc("POST /api/form/blur", s.session(s.handleBlur))
	mux.HandleFunc("GET /api/form/validation", s.session(s.handleValidation))
	mux.HandleFunc("GET /api/form/options", s.session(s.handleOptions))
	mux.HandleFunc("GET /api/form/preview", s.session(s.handlePreview))
	mux.HandleFunc("POST /api/form/submit", s.session(s.handleSubmit))
	mux.HandleFunc("GET /api/quote", s.session(s.handleQuote))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("Request handled", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// releaseSession drops the in-process handles for a finished session. The
// stored draft stays so the user can start from it next time.
func (s *Server) releaseSession(session string) {
	s.store.Release(session)
	s.quoter.Forget(session)
}

// SweepSessions releases sessions untouched for longer than idle.
func (s *Server) SweepSessions(idle time.Duration) {
	forms := s.store.Sweep(idle)
	quotes := s.quoter.Sweep(idle)
	notices := s.notices.Sweep(idle)
	if forms+quotes+notices == 0 {
		return
	}
	s.log.Debug("Idle sessions released", map[string]interface{}{
		"forms":   forms,
		"quotes":  quotes,
		"notices": notices,
		"idle":    idle.String(),
	})
}

// RunJanitor sweeps idle sessions every idle/2 until ctx is done.
func (s *Server) RunJanitor(ctx context.Context, idle time.Duration) error {
	if idle <= 0 {
		return nil
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepSessions(idle)
		}
	}
}
