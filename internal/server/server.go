// Package server exposes the booking system over HTTP: a JSON API for
// services, availability, appointments, the address book and bulk sends,
// plus a websocket stream of schedule updates.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"salonbot/internal/addressbook"
	"salonbot/internal/broadcast"
	"salonbot/internal/catalog"
	"salonbot/internal/eventbus"
	"salonbot/internal/job"
	"salonbot/internal/notify"
	"salonbot/internal/scheduler"
	logx "salonbot/pkg/logx"
)

// Config carries the server's own knobs; everything else arrives via Deps.
type Config struct {
	Addr        string
	MaxServices int
}

// Deps are the wired application services the handlers call into.
type Deps struct {
	Log       logx.Logger
	Catalog   *catalog.Catalog
	Jobs      *job.Store
	Scheduler *scheduler.Service
	Notifier  *notify.Dispatcher
	Book      *addressbook.Book
	Broadcast *broadcast.Service
	Bus       eventbus.Bus
}

type Server struct {
	log  logx.Logger
	cfg  Config
	deps Deps
	hub  *hub
	http *http.Server
}

func New(cfg Config, deps Deps) *Server {
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	s := &Server{
		log:  deps.Log,
		cfg:  cfg,
		deps: deps,
		hub:  newHub(deps.Bus, deps.Log),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.logMiddleware)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/services", s.handleServices)
		r.Post("/availability", s.handleAvailability)

		r.Get("/jobs", s.handleJobs)
		r.Post("/appointments", s.handleBookAppointment)
		r.Delete("/appointments/{id}", s.handleCancelAppointment)

		r.Get("/public/appointments", s.handlePublicAppointments)
		r.Post("/public/appointments", s.handlePublicBook)

		r.Get("/address-book", s.handleAddressBookList)
		r.Post("/address-book", s.handleAddressBookAdd)
		r.Get("/recent-numbers", s.handleRecentNumbers)

		r.Get("/broadcast", s.handleBroadcastList)
		r.Get("/broadcast/{id}", s.handleBroadcastStatus)
		r.Post("/broadcast", s.handleBroadcastEnqueue)
		r.Post("/upload", s.handleUpload)
	})

	r.Get("/ws", s.hub.handleConnect)
	return r
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start begins serving and returns immediately. Listen errors other than
// a clean shutdown are reported on errCh.
func (s *Server) Start(ctx context.Context, errCh chan<- error) {
	s.hub.start(ctx)
	go func() {
		s.log.Info("http server listening", logx.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	s.hub.stop()
	return s.http.Shutdown(ctx)
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic",
					logx.String("path", r.URL.Path),
					logx.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			// The upgrader needs the raw ResponseWriter to hijack.
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", sw.status),
			logx.Duration("took", time.Since(start)))
	})
}

// The API is consumed by a browser frontend served from elsewhere.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
