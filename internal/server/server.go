// Package server — server.go
//
// TCP acceptor and bounded worker pool, generalized from the teacher
// codebase's operator Unix-socket acceptor: a plain accept loop, a
// buffered-channel semaphore bounding concurrent sessions, one
// goroutine per accepted connection, and a context-driven shutdown
// that closes the listener and waits (up to a deadline) for in-flight
// sessions to finish.
//
// Unlike the teacher's 4-connection operator admin socket, this pool
// is sized for client session volume: DefaultPoolSize is at least 8
// and scales with available cores.
package server

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corkboard/corkboard/internal/corkboard"
	"github.com/corkboard/corkboard/internal/session"
)

// Metrics is the subset of internal/observability.Metrics a Server
// reports to, beyond what it passes through to each session.
type Metrics interface {
	session.Metrics
	IncActiveSessions()
	DecActiveSessions()
}

// DefaultPoolSize returns the default bounded worker pool size:
// max(8, 2*NumCPU).
func DefaultPoolSize() int {
	n := 2 * runtime.NumCPU()
	if n < 8 {
		return 8
	}
	return n
}

// Server is the TCP acceptor for the corkboard protocol.
type Server struct {
	addr     string
	board    *corkboard.State
	log      *zap.Logger
	poolSize int
	metrics  Metrics

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a Server bound to addr (host:port or :port), backed by
// board, bounded by poolSize concurrent sessions. metrics may be nil.
func New(addr string, board *corkboard.State, log *zap.Logger, poolSize int, metrics Metrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolSize()
	}
	return &Server{addr: addr, board: board, log: log, poolSize: poolSize, metrics: metrics}
}

// ListenAndServe binds the listener and accepts connections until ctx
// is cancelled. It blocks until shutdown is complete.
func (s *Server) ListenAndServe(ctx context.Context, drainTimeout time.Duration) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("corkboard: listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.log.Info("corkboard listening", zap.String("addr", lis.Addr().String()), zap.Int("pool_size", s.poolSize))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.mu.Unlock()
	}()

	sem := make(chan struct{}, s.poolSize)
	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return s.drain(drainTimeout)
			default:
				s.log.Error("accept error", zap.Error(err))
				continue
			}
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			_ = conn.Close()
			return s.drain(drainTimeout)
		}

		if s.metrics != nil {
			s.metrics.IncActiveSessions()
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() { <-sem }()
			defer func() {
				if s.metrics != nil {
					s.metrics.DecActiveSessions()
				}
			}()
			session.New(c, s.board, s.log, s.metrics).Run()
		}(conn)
	}
}

// drain waits up to timeout for in-flight sessions to finish.
func (s *Server) drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("all sessions drained")
	case <-time.After(timeout):
		s.log.Warn("drain timeout exceeded — exiting with sessions still active")
	}
	return nil
}
