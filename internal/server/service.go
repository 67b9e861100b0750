// Package server exposes the agent's HTTP surface: the JSON-RPC endpoint
// peers call, discovery and health endpoints, and a token-guarded /status.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	logx "ronbot/pkg/logx"
)

const defaultAddr = ":8000"

// DefaultAgentPath is where the JSON-RPC endpoint is mounted.
const DefaultAgentPath = "/a2a/ron"

// Config controls the HTTP server.
//
// Token guards /status only; the agent endpoint, health and the agent
// card must stay reachable for peers.
type Config struct {
	Addr  string
	Token string

	AgentPath string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	handler *Handler

	ln       net.Listener
	srv      *http.Server
	stopDone chan struct{}
}

func New(cfg Config, h *Handler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, handler: h, log: log}
}

// Addr returns the bound listen address, or "" when not running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Apply reconfigures the server, restarting it when the listen address,
// token, mount path or timeouts changed.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.mu.Unlock()

	if running && needsRestart(prev, cfg) {
		s.Stop(ctx)
		if err := s.Start(ctx); err != nil {
			s.log.Error("http server restart failed", logx.Err(err))
		}
	}
}

func needsRestart(a, b Config) bool {
	if a.Addr != b.Addr || a.Token != b.Token {
		return true
	}
	if normalizeAgentPath(a.AgentPath) != normalizeAgentPath(b.AgentPath) {
		return true
	}
	// Timeouts are fixed at listen time; easiest is restart.
	return a.ReadTimeout != b.ReadTimeout || a.WriteTimeout != b.WriteTimeout || a.IdleTimeout != b.IdleTimeout
}

// Start binds the listener and begins serving. A Start while already
// running is a no-op.
func (s *Service) Start(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.srv != nil {
			s.mu.Unlock()
			return nil
		}
		// If a stop is in progress, wait for it (avoid double listen).
		if s.stopDone != nil {
			done := s.stopDone
			s.mu.Unlock()
			select {
			case <-done:
				// loop
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		cur := s.cfg
		s.mu.Unlock()

		addr := strings.TrimSpace(cur.Addr)
		if addr == "" {
			addr = defaultAddr
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}

		srv := &http.Server{
			Handler:      s.withRecover(s.buildMux(cur)),
			ReadTimeout:  cur.ReadTimeout,
			WriteTimeout: cur.WriteTimeout,
			IdleTimeout:  cur.IdleTimeout,
		}

		s.mu.Lock()
		s.ln = ln
		s.srv = srv
		s.mu.Unlock()

		go func() {
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("http server stopped with error", logx.Err(err))
			}
		}()

		s.log.Info("http server started",
			logx.String("addr", ln.Addr().String()),
			logx.String("agent_path", normalizeAgentPath(cur.AgentPath)),
			logx.Bool("token_set", cur.Token != ""),
		)
		return nil
	}
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.srv == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}

	done := make(chan struct{})
	s.stopDone = done
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	// Ensure the listener is closed even if Shutdown is stuck.
	if ln != nil {
		_ = ln.Close()
	}

	go func() {
		defer close(done)
		shutdownCtx := ctx
		if shutdownCtx == nil {
			shutdownCtx = context.Background()
		}
		_ = srv.Shutdown(shutdownCtx)
		_ = srv.Close()
		s.mu.Lock()
		s.stopDone = nil
		s.mu.Unlock()
		s.log.Info("http server stopped")
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		return
	}
}

func (s *Service) buildMux(cfg Config) *http.ServeMux {
	path := normalizeAgentPath(cfg.AgentPath)
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handler.HandleRPC(w, r)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handler.HandleHealth(w, r)
	})

	mux.HandleFunc("/.well-known/agent.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handler.HandleAgentCard(w, r)
	})

	mux.HandleFunc("/status", s.withAuth(cfg.Token, s.handler.HandleStatus))

	return mux
}

// withRecover keeps one panicking request from taking the server down.
func (s *Service) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic serving request",
					logx.String("path", r.URL.Path),
					logx.Any("panic", rec),
					logx.Stack(string(debug.Stack())),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Service) withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		// Accept either:
		//   Authorization: Bearer <token>
		// or query param: ?token=<token>
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		if ah := r.Header.Get("Authorization"); ah != "" {
			const p = "Bearer "
			if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				h(w, r)
				return
			}
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func normalizeAgentPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultAgentPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
