package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/angeloszaimis/proxee/pkg/hostport"
)

var (
	ErrTooManyAcceptFailures = errors.New("too many consecutive accept failures")
	ErrServerClosed          = errors.New("proxy server closed")
)

const (
	DefaultMaxAcceptFailures = 10

	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Handler serves one accepted connection. It owns conn and must close it.
type Handler interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

type HandlerFunc func(ctx context.Context, conn net.Conn)

func (f HandlerFunc) ServeConn(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// Server is the dispatch loop.
type Server struct {
	addr              string
	handler           Handler
	logger            *slog.Logger
	clock             clockwork.Clock
	maxAcceptFailures int

	mu       sync.Mutex
	listener net.Listener
	closing  bool

	conns       sync.WaitGroup
	connCtx     context.Context
	cancelConns context.CancelFunc
}

type Option func(*Server)

func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithMaxAcceptFailures sets how many consecutive accept errors Serve
// tolerates before giving up.
func WithMaxAcceptFailures(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxAcceptFailures = n
		}
	}
}

// WithListener makes the server use ln instead of binding addr.
func WithListener(ln net.Listener) Option {
	return func(s *Server) { s.listener = ln }
}

// New validates addr and returns a server that is not yet listening.
func New(logger *slog.Logger, addr string, handler Handler, opts ...Option) (*Server, error) {
	if err := hostport.Listen.Validate(addr); err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:              addr,
		handler:           handler,
		logger:            logger,
		clock:             clockwork.NewRealClock(),
		maxAcceptFailures: DefaultMaxAcceptFailures,
		connCtx:           connCtx,
		cancelConns:       cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Listen binds the listen address. It is a no-op when already bound and
// fails with ErrServerClosed after Shutdown.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return ErrServerClosed
	}

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.listener = ln

	s.logger.Info("Proxy listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, Shutdown is called or
// accepting keeps failing. It binds first when Listen has not been called.
// Cancellation stops accepting but leaves in-flight relays running; use
// Shutdown to wait for them.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln, closing := s.listener, s.closing
	s.mu.Unlock()
	if closing {
		return nil
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.closeListener()
		case <-stop:
		}
	}()

	var (
		failures int
		delay    time.Duration
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			failures++
			if failures >= s.maxAcceptFailures {
				s.logger.Error("Giving up accepting connections",
					slog.Int("failures", failures),
					slog.Any("err", err))
				return fmt.Errorf("%w (%d): %w", ErrTooManyAcceptFailures, failures, err)
			}

			delay = nextBackoff(delay)
			s.logger.Warn("Accept failed, retrying",
				slog.Int("failures", failures),
				slog.Duration("backoff", delay),
				slog.Any("err", err))

			select {
			case <-s.clock.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		failures, delay = 0, 0

		if !s.track() {
			conn.Close()
			return nil
		}
		go s.serveConn(conn)
	}
}

// track registers a connection unless shutdown has started. Holding mu
// orders every Add before the Wait in Shutdown.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.conns.Done()
	defer func() {
		if p := recover(); p != nil {
			conn.Close()
			s.logger.Error("Connection handler panicked",
				slog.String("client", conn.RemoteAddr().String()),
				slog.Any("panic", p))
		}
	}()

	s.handler.ServeConn(s.connCtx, conn)
}

// Shutdown stops accepting and waits for in-flight connections. When ctx
// expires first the remaining connections are cancelled and ctx's error is
// returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeListener()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelConns()
		return nil
	case <-ctx.Done():
		s.cancelConns()
		<-done
		return ctx.Err()
	}
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return
	}
	s.closing = true

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("Failed to close listener", slog.Any("err", err))
		}
	}
}

func nextBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptBackoff
	}
	next := prev * 2
	if next > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return next
}
