package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/classboard/internal/metrics"
	"github.com/Tyrowin/classboard/internal/room"
)

const (
	tracerName      = "github.com/Tyrowin/classboard/internal/server"
	shutdownTimeout = 5 * time.Second
)

// Server accepts participants over TCP and WebSocket and connects them to a
// single room.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	room     *room.Room
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	origins  *originPolicy
	upgrader websocket.Upgrader
	hub      *hub

	mu           sync.Mutex
	baseCtx      context.Context
	tcpListener  net.Listener
	httpListener net.Listener
	httpServer   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector. By default each Server gets its own.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracerProvider sets the provider spans are created from. By default the
// global OpenTelemetry provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a Server and its room. Call Serve to start accepting.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg.sanitize(),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		hub:     newHub(),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	s.room = room.New(
		room.WithLogger(s.logger.With("component", "room")),
		room.WithObserver(s.metrics),
		room.WithBoardLockEnforcement(s.cfg.EnforceBoardLock),
	)
	s.origins = newOriginPolicy(s.cfg.AllowedOrigins, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Room returns the room shared by all connections.
func (s *Server) Room() *room.Room {
	return s.room
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Listen binds the configured listeners. Serve calls it if needed; calling it
// first lets callers learn the bound addresses.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.TCPAddr != "" && s.tcpListener == nil {
		ln, err := net.Listen("tcp", s.cfg.TCPAddr)
		if err != nil {
			return fmt.Errorf("listen tcp %s: %w", s.cfg.TCPAddr, err)
		}
		s.tcpListener = ln
	}
	if s.cfg.HTTPAddr != "" && s.httpListener == nil {
		ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			if s.tcpListener != nil {
				_ = s.tcpListener.Close()
				s.tcpListener = nil
			}
			return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
		}
		s.httpListener = ln
		s.httpServer = &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	if s.tcpListener == nil && s.httpListener == nil {
		return errors.New("no listener configured")
	}
	return nil
}

// TCPAddr returns the bound TCP address, or nil.
func (s *Server) TCPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpListener == nil {
		return nil
	}
	return s.tcpListener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

// Serve accepts connections until ctx is cancelled or a listener fails. A
// cancelled context is a clean shutdown and returns nil; an accept failure is
// returned and is meant to end the process.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.baseCtx = ctx
	tcpLn, httpLn, httpSrv := s.tcpListener, s.httpListener, s.httpServer
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	if tcpLn != nil {
		s.logger.Info("accepting tcp connections", "addr", tcpLn.Addr().String())
		g.Go(func() error {
			return s.acceptLoop(gctx, tcpLn)
		})
	}
	if httpLn != nil {
		s.logger.Info("serving http", "addr", httpLn.Addr().String())
		g.Go(func() error {
			if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown(tcpLn, httpSrv)
		return nil
	})

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetKeepAlive(true)
			_ = tcp.SetKeepAlivePeriod(tcpKeepAlive)
		}
		s.handleConn(newTCPConn(conn, s.cfg.MaxLineBytes), transportTCP)
	}
}

// handleConn starts the pumps for a newly accepted connection.
func (s *Server) handleConn(conn lineConn, transport string) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	c := newClient(ctx, s, conn, transport)
	s.metrics.ConnectionOpened(transport)
	started := s.hub.start(c, func() {
		s.metrics.ConnectionClosed(transport)
	})
	if !started {
		s.metrics.ConnectionClosed(transport)
		_ = conn.Close()
		return
	}
	c.logger.Debug("connection accepted", "connections", s.hub.len())
}

func (s *Server) shutdown(tcpLn net.Listener, httpSrv *http.Server) {
	s.logger.Info("shutting down")

	if tcpLn != nil {
		if err := tcpLn.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Warn("error closing tcp listener", "error", err)
		}
	}
	if httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			s.logger.Warn("http server shutdown error", "error", err)
		}
	}
	if err := s.hub.shutdown(shutdownTimeout); err != nil {
		s.logger.Warn("connections still running after shutdown timeout", "error", err)
		return
	}
	s.logger.Info("shutdown complete")
}
