package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/interfaces"
	"github.com/chess-vn/courtsync/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var matchIdPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// TaskProtector keeps the hosting task alive while matches are in memory.
type TaskProtector interface {
	UpdateServerProtection(ctx context.Context, enabled bool) error
}

type Server struct {
	config   Config
	clock    clockwork.Clock
	upgrader websocket.Upgrader
	cors     *cors.Cors

	usecase   interfaces.IMatchStateUsecase
	protector TaskProtector
	closers   []func()

	mu      sync.Mutex
	matches map[string]*matchEntry
	closed  bool

	openConns       atomic.Int64
	persistFailures atomic.Int64
	protected       atomic.Bool
	protectCh       chan bool
}

// matchEntry tracks how many sockets hold a match. An entry with no
// holders is evicted once its idle timer fires. match and err are set
// under Server.mu before ready is closed.
type matchEntry struct {
	match *Match
	err   error
	ready chan struct{}
	refs  int
	idle  clockwork.Timer
}

func NewServer(
	cfg Config,
	usecase interfaces.IMatchStateUsecase,
	clock clockwork.Clock,
	protector TaskProtector,
) *Server {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	s := &Server{
		config:    cfg,
		clock:     clock,
		cors:      c,
		usecase:   usecase,
		protector: protector,
		matches:   make(map[string]*matchEntry),
		protectCh: make(chan bool, 1),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if r.Header.Get("Origin") == "" {
		return true
	}
	return s.cors.OriginAllowed(r)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.cors.Handler)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.HandleFunc("/match/{matchId}", s.handleMatch)
	return r
}

// Start serves until ctx is cancelled, then shuts the listener down and
// flushes every live match.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    "0.0.0.0:" + s.config.Port,
		Handler: s.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("websocket server started", zap.String("port", s.config.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	})
	if s.protector != nil {
		g.Go(func() error {
			s.runProtection(gctx)
			return nil
		})
	}
	return g.Wait()
}

// Close stops every match, flushing queued writes. Further connections
// are refused.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	entries := make([]*matchEntry, 0, len(s.matches))
	for id, e := range s.matches {
		if e.idle != nil {
			e.idle.Stop()
		}
		entries = append(entries, e)
		delete(s.matches, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		// Entries still loading see s.closed and never start a match.
		if e.match != nil {
			e.match.stop()
		}
	}
	for _, closer := range s.closers {
		closer()
	}
	logging.Info("server closed", zap.Int("matches", len(entries)))
}

// acquire returns the live match for matchId, loading it on first use.
// The load runs outside s.mu; concurrent callers for the same id wait on
// the loading entry. Every successful acquire must be paired with a
// release.
func (s *Server) acquire(ctx context.Context, matchId string) (*Match, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServerClosed
	}
	if e, ok := s.matches[matchId]; ok {
		e.refs++
		if e.idle != nil {
			e.idle.Stop()
			e.idle = nil
		}
		s.mu.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		return e.match, nil
	}
	e := &matchEntry{ready: make(chan struct{}), refs: 1}
	s.matches[matchId] = e
	if len(s.matches) == 1 {
		s.requestProtection(true)
	}
	s.mu.Unlock()

	loadCtx, cancel := context.WithTimeout(ctx, s.config.Persistence.LoadTimeout)
	state, err := s.usecase.Load(loadCtx, matchId)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(e.ready)
	if err == nil && s.closed {
		err = ErrServerClosed
	} else if err != nil {
		err = fmt.Errorf("%w: %w", ErrFailedToLoadMatch, err)
	}
	if err != nil {
		e.err = err
		if cur, ok := s.matches[matchId]; ok && cur == e {
			delete(s.matches, matchId)
			if len(s.matches) == 0 {
				s.requestProtection(false)
			}
		}
		return nil, err
	}

	e.match = newMatch(
		matchId,
		state,
		s.usecase,
		s.clock,
		s.config.Persistence.QueueSize,
		s.handlePersistFailure,
	)
	logging.Info("match loaded", zap.String("match_id", matchId))
	return e.match, nil
}

func (s *Server) release(matchId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.matches[matchId]
	if !ok {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	e.idle = s.clock.AfterFunc(s.config.IdleTimeout, func() {
		s.evict(matchId, e)
	})
	logging.Info("match idle",
		zap.String("match_id", matchId),
		zap.Duration("idle_timeout", s.config.IdleTimeout),
	)
}

func (s *Server) evict(matchId string, e *matchEntry) {
	s.mu.Lock()
	if cur, ok := s.matches[matchId]; !ok || cur != e || e.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.matches, matchId)
	if len(s.matches) == 0 {
		s.requestProtection(false)
	}
	s.mu.Unlock()

	e.match.stop()
	logging.Info("match evicted", zap.String("match_id", matchId))
}

func (s *Server) activeMatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

func (s *Server) handlePersistFailure(error) {
	s.persistFailures.Add(1)
}

// requestProtection records the wanted protection state; only the latest
// request is applied. Callers hold s.mu.
func (s *Server) requestProtection(enabled bool) {
	if s.protector == nil {
		return
	}
	select {
	case <-s.protectCh:
	default:
	}
	s.protectCh <- enabled
}

func (s *Server) runProtection(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case enabled := <-s.protectCh:
			updateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := s.protector.UpdateServerProtection(updateCtx, enabled)
			cancel()
			if err != nil {
				logging.Error("failed to update task protection",
					zap.Bool("enabled", enabled),
					zap.Error(err),
				)
				continue
			}
			s.protected.Store(enabled)
			logging.Info("task protection updated", zap.Bool("enabled", enabled))
		}
	}
}

func validMatchId(matchId string) bool {
	return matchIdPattern.MatchString(matchId)
}
