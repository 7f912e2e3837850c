package server

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/FreePeak/smart-slides/internal/domain"
)

var _ domain.ConnectionRegistry = (*ConnectionRegistry)(nil)

// ConnectionRegistry implements domain.ConnectionRegistry for the live
// real-time connections of one server instance.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]domain.Connection
	gauge prometheus.Gauge
}

// RegistryOption configures a ConnectionRegistry.
type RegistryOption func(*ConnectionRegistry)

// WithActiveGauge reports the membership size on g after every change.
func WithActiveGauge(g prometheus.Gauge) RegistryOption {
	return func(r *ConnectionRegistry) {
		r.gauge = g
	}
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry(opts ...RegistryOption) *ConnectionRegistry {
	r := &ConnectionRegistry{
		conns: make(map[string]domain.Connection),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a connection to the registry.
func (r *ConnectionRegistry) Register(conn domain.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = conn
	r.report()
}

// Deregister removes a connection from the registry. It is safe to call any
// number of times from any goroutine.
func (r *ConnectionRegistry) Deregister(conn domain.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID()]; !ok {
		return false
	}
	delete(r.conns, conn.ID())
	r.report()
	return true
}

// Contains reports whether conn is currently registered.
func (r *ConnectionRegistry) Contains(conn domain.Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[conn.ID()]
	return ok
}

// Snapshot returns a copy of the current membership. Callers may iterate it
// while other goroutines register or deregister.
func (r *ConnectionRegistry) Snapshot() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// CloseAll closes and removes every connection.
func (r *ConnectionRegistry) CloseAll(code int, reason string) error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]domain.Connection)
	r.report()
	r.mu.Unlock()

	var err error
	for _, conn := range conns {
		err = multierr.Append(err, conn.Close(code, reason))
	}
	return err
}

// Count returns the number of active connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// report must be called with mu held.
func (r *ConnectionRegistry) report() {
	if r.gauge != nil {
		r.gauge.Set(float64(len(r.conns)))
	}
}
