// Package server owns the shared dispatch table, the worker pool, and
// the accept loop that spawns one connection handler per socket.
package server

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/unaxfromsibiria/roomb-go/internal/connection"
	"github.com/unaxfromsibiria/roomb-go/internal/dispatch"
	"github.com/unaxfromsibiria/roomb-go/internal/worker"
)

// Config bundles the values the server front needs from configuration.
type Config struct {
	Socket               string
	Workers              int
	CommandBufferSize    int
	Node                 string
	Secret               string
	ConnectionBufferSize int
}

// Server listens, accepts, and dispatches to a worker pool over a
// shared dispatch.Table.
type Server struct {
	cfg   Config
	table *dispatch.Table
	pool  *worker.Pool

	runMu  sync.Mutex
	runCtx context.Context
}

// New constructs a Server and its shared dispatch table/worker pool.
// The table and pool are not started until Start is called.
func New(cfg Config) *Server {
	table := dispatch.New(cfg.CommandBufferSize)
	pool := worker.NewPool(table, cfg.Secret, cfg.Workers)
	return &Server{cfg: cfg, table: table, pool: pool}
}

// Table returns the shared dispatch table, mainly for tests.
func (s *Server) Table() *dispatch.Table { return s.table }

// Start binds the listen socket and runs the accept loop and worker
// pool under ctx. It returns once ctx is cancelled or the listener
// fails to bind; a bind failure is fatal and surfaces as a returned
// error for the caller to act on.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Socket)
	if err != nil {
		return err
	}
	slog.Info("dispatch server listening", "addr", s.cfg.Socket, "workers", s.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)

	s.runMu.Lock()
	s.runCtx = gctx
	s.runMu.Unlock()

	g.Go(func() error {
		s.pool.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-gctx.Done():
					return nil
				default:
					slog.Error("accept error", "error", err)
					continue
				}
			}
			go connection.Handle(conn, s.table, s.cfg.Node, s.cfg.Secret, s.cfg.ConnectionBufferSize)
		}
	})

	return g.Wait()
}

// Reconfigure applies a config reload's worker count and command
// buffer size to the already-running table and pool. The table always
// grows to accommodate commandBufferSize; the pool grows to workers
// only once Start has installed a run context, so a reload racing
// ahead of Start is a safe no-op rather than spawning workers tied to
// no lifecycle.
func (s *Server) Reconfigure(workers, commandBufferSize int) {
	s.table.Grow(commandBufferSize)

	s.runMu.Lock()
	ctx := s.runCtx
	s.runMu.Unlock()
	if ctx == nil {
		slog.Warn("config reload before server start, pool not resized", "workers", workers)
		return
	}
	s.pool.GrowTo(ctx, workers)
}
