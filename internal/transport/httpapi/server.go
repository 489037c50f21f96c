package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"choreminder/internal/runtime/supervisor"
	logx "choreminder/pkg/logx"
)

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateRPS         float64
	RateBurst       int
	Pprof           bool
}

type Server struct {
	cfg     Config
	log     logx.Logger
	limiter *limiter
	h       *handlers
	handler http.Handler

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, svc Service, journal JournalReader, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		cfg:     cfg,
		log:     log,
		limiter: newLimiter(cfg.RateRPS, cfg.RateBurst),
	}
	s.h = &handlers{svc: svc, journal: journal, log: log}
	s.handler = s.routes(s.h)
	return s
}

// SetRuntimeStats adds fn's snapshot to /healthz. Call it before Serve.
func (s *Server) SetRuntimeStats(fn func() supervisor.Snapshot) { s.h.runtime = fn }

func (s *Server) routes(h *handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.CleanPath,
		accessLog(s.log),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", h.healthz)
	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.middleware)

		r.Post("/reminders", h.createReminder)
		r.Get("/reminders/{id}", h.getReminder)
		r.Put("/reminders/{id}", h.updateReminder)
		r.Delete("/reminders/{id}", h.deleteReminder)
		r.Get("/owners/{owner}/reminders", h.listReminders)
		r.Get("/dispatched", h.drainDispatched)

		r.Post("/admin/dispatch", h.runDispatch)
		r.Get("/admin/journal", h.journalTail)
	})
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// ApplyRateLimit retunes the request limiter. rps <= 0 disables it.
func (s *Server) ApplyRateLimit(rps float64, burst int) {
	s.limiter.apply(rps, burst)
	s.log.Info("rate limit updated", logx.Any("rps", rps), logx.Int("burst", burst))
}

// Listen binds the configured address. Call Serve afterwards.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", s.cfg.Pprof))
	return nil
}

// Addr is the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve blocks until the server stops. It is meant to run under the supervisor.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	srv, ln := s.srv, s.ln
	s.mu.Unlock()
	if srv == nil {
		return errors.New("http: Serve called before Listen")
	}
	srv.BaseContext = func(net.Listener) context.Context { return ctx }
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully, bounded by ctx and ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	start := time.Now()
	if err := srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown incomplete; closing", logx.Err(err))
		_ = srv.Close()
	}
	s.log.Info("http stopped", logx.Duration("took", time.Since(start)))
}
