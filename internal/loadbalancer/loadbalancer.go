package loadbalancer

import (
	"errors"
	"log/slog"

	"github.com/angeloszaimis/proxee/internal/backend"
	"github.com/angeloszaimis/proxee/internal/strategy"
)

// ErrNoBackends is returned by Pick when the registry is empty.
var ErrNoBackends = errors.New("no backend available")

// LoadBalancer owns the backend registry and the rotation cursor and is
// shared by every relay. Pick is safe for concurrent use and never blocks.
type LoadBalancer struct {
	method   strategy.Method
	registry *backend.Registry
	cursor   *strategy.Cursor
}

// New returns a load balancer with the cursor at zero.
func New(method strategy.Method, registry *backend.Registry) *LoadBalancer {
	return NewWithCursor(method, registry, 0)
}

// NewWithCursor returns a load balancer whose first round-robin pick uses
// index start modulo the registry length.
func NewWithCursor(method strategy.Method, registry *backend.Registry, start uint64) *LoadBalancer {
	if registry == nil {
		registry = backend.NewRegistry(nil)
	}

	return &LoadBalancer{
		method:   method,
		registry: registry,
		cursor:   strategy.NewCursor(start),
	}
}

// NewFromConfig builds a load balancer from the configured method name and
// backend addresses. Unknown method names fall back to round robin.
func NewFromConfig(logger *slog.Logger, methodName string, addresses []string) *LoadBalancer {
	method, known := strategy.ParseMethod(methodName)
	if !known {
		logger.Warn("Unknown load balancing method, defaulting to round_robin",
			slog.String("requested", methodName))
	}

	if len(addresses) == 0 {
		logger.Warn("No backend servers configured, every connection will fail")
	}

	return New(method, backend.NewRegistry(addresses))
}

// Pick selects the backend for a connection from clientIP.
func (lb *LoadBalancer) Pick(clientIP string) (backend.Server, error) {
	server, ok := strategy.Select(lb.method, lb.registry, lb.cursor, clientIP)
	if !ok {
		return backend.Server{}, ErrNoBackends
	}
	return server, nil
}

func (lb *LoadBalancer) Method() strategy.Method {
	return lb.method
}

func (lb *LoadBalancer) Backends() []backend.Server {
	return lb.registry.Servers()
}
