// Package server exposes editor sessions over HTTP and WebSocket.
//
// Each client creates a session, uploads a graph file and then drives the
// editor with REST commands (layout, style, export) and a WebSocket stream
// for pointer and selection input. Controller events (handles, style,
// layout, alerts) are pushed back over the same socket.
//
// # Routes
//
//	GET    /health
//	POST   /api/sessions
//	DELETE /api/sessions/{id}
//	POST   /api/sessions/{id}/upload?filename=
//	GET    /api/sessions/{id}/document
//	GET    /api/sessions/{id}/layout
//	POST   /api/sessions/{id}/layout
//	POST   /api/sessions/{id}/view/reset
//	GET    /api/sessions/{id}/export?format=
//	POST   /api/sessions/{id}/style/{color|border|opacity|shape|reset}
//	GET    /api/sessions/{id}/selection
//	POST   /api/sessions/{id}/selection
//	GET    /api/sessions/{id}/handles
//	GET    /api/sessions/{id}/ws
//
// Errors are returned as {"code": ..., "message": ...}.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/dagview/pkg/observability"
	"github.com/matzehuels/dagview/pkg/session"
)

// DefaultMaxUploadBytes bounds upload bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 10 << 20

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	Logger         *log.Logger
}

// Server routes HTTP requests to editor sessions.
type Server struct {
	sessions  *session.Registry
	logger    *log.Logger
	maxUpload int64
	router    chi.Router
}

// New creates a server over a session registry.
func New(sessions *session.Registry, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		sessions:  sessions,
		logger:    opts.Logger,
		maxUpload: opts.MaxUploadBytes,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Post("/upload", s.handleUpload)
			r.Get("/document", s.handleDocument)
			r.Get("/layout", s.handleGetLayout)
			r.Post("/layout", s.handleApplyLayout)
			r.Post("/view/reset", s.handleResetView)
			r.Get("/export", s.handleExport)
			r.Post("/style/{command}", s.handleStyle)
			r.Get("/selection", s.handleGetSelection)
			r.Post("/selection", s.handleSelect)
			r.Get("/handles", s.handleHandles)
			r.Get("/ws", s.handleWS)
		})
	})
	return r
}

// observe reports every request to the HTTP hooks and the debug log.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		hooks.OnRequest(r.Context(), r.Method, route)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, route, status, time.Since(start))
		s.logger.Debug("request", "method", r.Method, "route", route, "status", status, "duration", time.Since(start))
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Expired sessions are swept in the background.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sessions.Run(ctx, 0)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
