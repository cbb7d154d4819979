// Package introspect is an optional local HTTP+WebSocket sidecar: it
// answers a repository's current object/ref counts and streams commit
// progress to a tailing browser or CLI client. It is adapted from the
// teacher's internal/server package, cut down from a multi-tenant SaaS
// dashboard (sessions, rate limiter, repo manager, CORS) to a single
// embedded repository with no concept of a remote client beyond "someone
// is watching this process on localhost".
package introspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/objectrepo/corestore/internal/progress"
)

// RepoStats is the snapshot served from GET /stats and pushed to WebSocket
// clients whenever the watcher observes a change under refs/ or objects/.
type RepoStats struct {
	ObjectCount int    `json:"objectCount"`
	RefCount    int    `json:"refCount"`
	HeadDigest  string `json:"headDigest,omitempty"`
}

// StatsProvider computes a fresh RepoStats snapshot. The Repo handle
// implements this by delegating to ObjectStore/RefStore; tests can supply a
// stub.
type StatsProvider interface {
	Stats() (RepoStats, error)
}

// Message is the single envelope shape sent over the WebSocket, tagged by
// Type so a thin client can dispatch without guessing which field is set.
type Message struct {
	Type     string             `json:"type"` // "stats" | "progress"
	Stats    *RepoStats         `json:"stats,omitempty"`
	Progress *progress.Snapshot `json:"progress,omitempty"`
}

// Server serves repo stats and a progress/change feed for one repository.
type Server struct {
	addr      string
	repoRoot  string
	provider  StatsProvider
	logger    *slog.Logger
	broadcast chan Message

	cacheMu sync.RWMutex
	cached  *RepoStats

	clientsMu sync.RWMutex
	clients   map[*wsClient]struct{}

	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

const broadcastChannelSize = 64

// Config configures a Server.
type Config struct {
	Addr     string
	RepoRoot string
	Provider StatsProvider
	Logger   *slog.Logger
}

// New constructs a Server ready to be Started.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      cfg.Addr,
		repoRoot:  cfg.RepoRoot,
		provider:  cfg.Provider,
		logger:    cfg.Logger.With("component", "introspect"),
		broadcast: make(chan Message, broadcastChannelSize),
		clients:   make(map[*wsClient]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Handler returns the sidecar's HTTP handler, exposed separately from
// Start so tests can drive it through httptest without binding a real port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return requestLogger(s.logger, mux)
}

// Start begins serving and blocks until the server exits or encounters a
// fatal error; call Shutdown from another goroutine to stop it.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived.
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handleBroadcast()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.startWatcher(); err != nil {
			s.logger.Error("watcher error", "err", err)
		}
	}()

	s.logger.Info("introspect sidecar starting", "addr", "http://"+s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener and all background
// goroutines, closing any connected WebSocket clients.
func (s *Server) Shutdown() {
	if s.httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "err", err)
		}
	}
	s.cancel()
	s.wg.Wait()
	s.closeAllClients()
}

// BroadcastProgress publishes a progress snapshot to every connected
// client. It can serve as a progress.Watch callback target; no code in
// this module connects it to a commit, and Transaction.Commit reports no
// progress.
func (s *Server) BroadcastProgress(snap progress.Snapshot) {
	s.enqueue(Message{Type: "progress", Progress: &snap})
}

func (s *Server) enqueue(msg Message) {
	select {
	case s.broadcast <- msg:
	default:
		s.logger.Warn("broadcast channel full, dropping message")
	}
}

func (s *Server) handleBroadcast() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			s.sendToAllClients(msg)
		}
	}
}

func (s *Server) invalidateAndBroadcastStats() {
	s.cacheMu.Lock()
	s.cached = nil
	s.cacheMu.Unlock()

	stats, err := s.currentStats()
	if err != nil {
		s.logger.Error("failed to recompute stats", "err", err)
		return
	}
	s.enqueue(Message{Type: "stats", Stats: &stats})
}

func (s *Server) currentStats() (RepoStats, error) {
	s.cacheMu.RLock()
	cached := s.cached
	s.cacheMu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	stats, err := s.provider.Stats()
	if err != nil {
		return RepoStats{}, err
	}
	s.cacheMu.Lock()
	s.cached = &stats
	s.cacheMu.Unlock()
	return stats, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.currentStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
