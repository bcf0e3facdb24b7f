// Package web provides an HTTP status server for the vent-controller daemon.
package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sweeney/vent-controller/internal/eventlog"
	"github.com/sweeney/vent-controller/internal/status"
)

// EventLister reads the event history.
type EventLister interface {
	List(ctx context.Context, limit int) ([]eventlog.Event, error)
}

// Options are the optional parts of the server.
type Options struct {
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	// Events backs /events when set.
	Events EventLister
	// AccessLog receives one line per request when set.
	AccessLog io.Writer
	// LiveInterval is the push interval of /ws. Defaults to DefaultLiveInterval.
	LiveInterval time.Duration
	Log          *zap.SugaredLogger
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	opts       Options
	log        *zap.SugaredLogger
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	if opts.LiveInterval <= 0 {
		opts.LiveInterval = DefaultLiveInterval
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{tracker: tracker, opts: opts, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleLive)
	if opts.Events != nil {
		r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	var h http.Handler = r
	if opts.AccessLog != nil {
		h = handlers.LoggingHandler(opts.AccessLog, h)
	}
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Warnw("render index failed", "error", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
