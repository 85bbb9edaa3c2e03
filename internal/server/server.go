// Package server runs the TCP accept loop: admission control, per-connection
// goroutines, and graceful shutdown with a bounded drain timeout.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/resrv/internal/config"
	"github.com/marmos91/resrv/internal/connection"
	"github.com/marmos91/resrv/internal/keyspace"
	"github.com/marmos91/resrv/internal/logger"
	"github.com/marmos91/resrv/internal/metrics"
	"github.com/marmos91/resrv/internal/resp"
)

// maxClientsErrorText is the fixed error message written to a connection
// rejected by admission control.
const maxClientsErrorText = "max number of clients reached"

// Server accepts RESP connections on a single TCP listener and serves them
// against a shared Keyspace until shut down.
type Server struct {
	cfg      config.ServerConfig
	ks       *keyspace.Keyspace
	recorder *metrics.Recorder

	listenerMu sync.RWMutex
	listener   net.Listener

	activeConns sync.WaitGroup
	connCount   atomic.Int32
	maxClients  int32

	activeConnections sync.Map // remote addr -> net.Conn

	shutdownOnce sync.Once
	shutdown     chan struct{}

	listenerReady chan struct{}
}

// New builds a Server bound to cfg.Server, owning a fresh Keyspace ticking at
// cfg.Keyspace.ExpirationTick. recorder may be nil to disable metrics.
func New(cfg config.Config, recorder *metrics.Recorder) *Server {
	return &Server{
		cfg:           cfg.Server,
		ks:            keyspace.New(cfg.Keyspace.ExpirationTick),
		recorder:      recorder,
		maxClients:    int32(cfg.Server.MaxClients),
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
}

// Keyspace returns the server's underlying keyspace, for callers (CLI
// subcommands, tests) that want to inspect it directly.
func (s *Server) Keyspace() *keyspace.Keyspace { return s.ks }

// Addr blocks until the listener is bound and returns its address. Useful in
// tests that bind to "127.0.0.1:0" and need the actual chosen port.
func (s *Server) Addr() string {
	<-s.listenerReady
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs the accept loop until ctx is cancelled or Shutdown is called,
// then drains active connections for up to ShutdownDrainTimeout before
// forcing them closed. Returns nil on a clean drain, or an error naming how
// many connections were force-closed.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received", "reason", ctx.Err())
		s.Shutdown()
	}()

	go s.sampleKeyspace(ctx)

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.drain()
			default:
				logger.Warn("accept error", "error", err)
				continue
			}
		}

		if tcp, ok := nc.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		if s.maxClients > 0 && s.connCount.Load() >= s.maxClients {
			s.rejectConnection(nc)
			continue
		}

		s.activeConns.Add(1)
		n := s.connCount.Add(1)
		addr := nc.RemoteAddr().String()
		s.activeConnections.Store(addr, nc)

		s.recorder.RecordConnectionAccepted()
		s.recorder.SetActiveConnections(int(n))
		logger.Debug("connection accepted", "addr", addr, "active", n)

		go s.handle(addr, nc)
	}
}

// rejectConnection implements admission control: writes a single Error
// frame naming the reason, then closes the socket without ever tracking it
// as an active connection.
func (s *Server) rejectConnection(nc net.Conn) {
	defer nc.Close()
	s.recorder.RecordConnectionRejected()
	logger.Warn("rejecting connection: admission limit reached", "addr", nc.RemoteAddr())

	wire := resp.EncodeBytes(resp.Err(maxClientsErrorText))
	_, _ = nc.Write(wire)
}

func (s *Server) handle(addr string, nc net.Conn) {
	defer func() {
		s.activeConnections.Delete(addr)
		s.activeConns.Done()
		n := s.connCount.Add(-1)
		s.recorder.SetActiveConnections(int(n))
		logger.Debug("connection closed", "addr", addr, "active", n)
	}()

	conn := connection.New(nc, s.ks, s.cfg.IdleTimeout, s.recorder)
	conn.Serve(context.Background())
}

// Shutdown signals the accept loop to stop and interrupts any connections
// currently blocked on a read. Safe to call multiple times and concurrently
// with Serve.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("error closing listener", "error", err)
			}
		}
		s.listenerMu.Unlock()

		deadline := time.Now().Add(100 * time.Millisecond)
		s.activeConnections.Range(func(_, v any) bool {
			if nc, ok := v.(net.Conn); ok {
				_ = nc.SetDeadline(deadline)
			}
			return true
		})

		s.ks.Close()
	})
}

// drain waits for active connections to finish, up to
// ShutdownDrainTimeout, then force-closes whatever remains.
func (s *Server) drain() error {
	active := s.connCount.Load()
	logger.Info("draining active connections", "active", active, "timeout", s.cfg.ShutdownDrainTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
		return nil
	case <-time.After(s.cfg.ShutdownDrainTimeout):
		remaining := s.connCount.Load()
		logger.Warn("shutdown drain timeout exceeded, forcing closure", "remaining", remaining)

		closed := 0
		s.activeConnections.Range(func(_, v any) bool {
			if nc, ok := v.(net.Conn); ok {
				_ = nc.Close()
				closed++
			}
			return true
		})
		return fmt.Errorf("server: shutdown drain timeout, %d connections force-closed", closed)
	}
}

// sampleKeyspace periodically reports keyspace size and reaper activity to
// the metrics recorder until ctx is done.
func (s *Server) sampleKeyspace(ctx context.Context) {
	if s.recorder == nil {
		return
	}

	interval := s.cfg.IdleTimeout / 10
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSweeps, lastExpired uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			stats := s.ks.Stats()
			s.recorder.SetKeyspaceSize(stats.Size)
			if stats.Sweeps > lastSweeps {
				for i := lastSweeps + 1; i < stats.Sweeps; i++ {
					s.recorder.RecordReaperSweep(0)
				}
				s.recorder.RecordReaperSweep(int(stats.Expired - lastExpired))
				lastSweeps = stats.Sweeps
				lastExpired = stats.Expired
			}
		}
	}
}
