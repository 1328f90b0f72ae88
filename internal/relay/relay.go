package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/angeloszaimis/proxee/internal/backend"
	"github.com/angeloszaimis/proxee/internal/metrics"
)

// Picker chooses the backend for a client IP.
type Picker interface {
	Pick(clientIP string) (backend.Server, error)
}

// Dialer opens upstream connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Sink receives one outcome per connection. Calls must not block.
type Sink interface {
	RecordCompletion()
	RecordOutcome(code int)
	RecordLatency(seconds float64)
}

// ResultRecorder is optionally implemented by a Sink that takes a
// connection's completion, outcome and latency in one call.
type ResultRecorder interface {
	RecordResult(metrics.Result)
}

// ConnectionTracker is optionally implemented by a Sink that wants to know
// how many upstream connections are open.
type ConnectionTracker interface {
	ConnectionOpened()
	ConnectionClosed()
}

type Relay struct {
	logger      *slog.Logger
	picker      Picker
	dialer      Dialer
	sink        Sink
	clock       clockwork.Clock
	dialTimeout time.Duration
	idleTimeout time.Duration
}

type Option func(*Relay)

func WithDialer(d Dialer) Option {
	return func(r *Relay) { r.dialer = d }
}

func WithClock(c clockwork.Clock) Option {
	return func(r *Relay) { r.clock = c }
}

// WithDialTimeout bounds each upstream dial. Zero means no bound beyond the
// caller's context.
func WithDialTimeout(d time.Duration) Option {
	return func(r *Relay) { r.dialTimeout = d }
}

// WithIdleTimeout fails a relay when neither direction has read anything for
// d. Zero disables the check.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Relay) { r.idleTimeout = d }
}

// New returns a relay picking backends from picker. A nil sink discards
// every outcome.
func New(logger *slog.Logger, picker Picker, sink Sink, opts ...Option) *Relay {
	if sink == nil {
		sink = metrics.Nop{}
	}

	r := &Relay{
		logger: logger,
		picker: picker,
		dialer: &net.Dialer{},
		sink:   sink,
		clock:  clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ServeConn relays conn and discards the outcome.
func (r *Relay) ServeConn(ctx context.Context, conn net.Conn) {
	r.Handle(ctx, conn)
}

// Handle relays client to a backend and returns once both directions have
// finished or one has failed. Both sockets are closed on return. A panic
// while relaying is recovered and reported as a failure.
func (r *Relay) Handle(ctx context.Context, client net.Conn) (out Outcome) {
	defer client.Close()
	defer func() {
		if p := recover(); p != nil {
			out = r.fail(out, CodeRelayFailed, fmt.Errorf("relay panic: %v", p))
		}
	}()

	out = Outcome{
		Start: r.clock.Now(),
		Stage: Accepted,
	}
	if addr := client.RemoteAddr(); addr != nil {
		out.ClientAddr = addr.String()
	}

	server, err := r.picker.Pick(ClientIP(client.RemoteAddr()))
	if err != nil {
		return r.fail(out, CodeUnavailable, err)
	}
	out.Backend = server
	out.Stage = BackendSelected

	upstream, err := r.dial(ctx, server)
	if err != nil {
		return r.fail(out, CodeDialFailed, err)
	}
	defer upstream.Close()

	if t, ok := r.sink.(ConnectionTracker); ok {
		t.ConnectionOpened()
		defer t.ConnectionClosed()
	}
	out.Stage = Connected

	out.Stage = Relaying
	if err := splice(ctx, client, upstream, r.idleTimeout); err != nil {
		return r.fail(out, CodeRelayFailed, err)
	}

	return r.succeed(out)
}

func (r *Relay) dial(ctx context.Context, server backend.Server) (net.Conn, error) {
	if r.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.dialTimeout)
		defer cancel()
	}

	conn, err := r.dialer.DialContext(ctx, "tcp", server.Address())
	if err != nil {
		return nil, fmt.Errorf("dial backend %s: %w", server, err)
	}
	return conn, nil
}

func (r *Relay) succeed(out Outcome) Outcome {
	out.Duration = r.clock.Since(out.Start)
	out.Status = Success
	out.Code = CodeSuccess

	r.report(metrics.Result{
		Code:      out.Code,
		Completed: true,
		Latency:   out.Duration.Seconds(),
		Observed:  true,
	})

	r.logger.Debug("Relay completed",
		slog.String("client", out.ClientAddr),
		slog.String("backend", out.Backend.Address()),
		slog.Duration("duration", out.Duration))

	return out
}

func (r *Relay) fail(out Outcome, code int, err error) Outcome {
	out.Duration = r.clock.Since(out.Start)
	out.Status = Failure
	out.Code = code
	out.Err = err

	// Latency is observed only for failures after relaying started.
	r.report(metrics.Result{
		Code:     code,
		Latency:  out.Duration.Seconds(),
		Observed: out.Stage == Relaying,
	})

	r.logger.Warn("Relay failed",
		slog.String("client", out.ClientAddr),
		slog.String("backend", out.Backend.Address()),
		slog.String("stage", out.Stage.String()),
		slog.Int("code", code),
		slog.Any("err", err))

	return out
}

func (r *Relay) report(res metrics.Result) {
	if rr, ok := r.sink.(ResultRecorder); ok {
		rr.RecordResult(res)
		return
	}

	if res.Completed {
		r.sink.RecordCompletion()
	}
	r.sink.RecordOutcome(res.Code)
	if res.Observed {
		r.sink.RecordLatency(res.Latency)
	}
}

// ClientIP returns the host part of addr, or its full string form when it
// has no port.
func ClientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
