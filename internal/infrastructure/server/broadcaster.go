package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/FreePeak/smart-slides/internal/domain"
	"github.com/FreePeak/smart-slides/internal/infrastructure/logging"
	"github.com/FreePeak/smart-slides/internal/infrastructure/metrics"
)

// Payload is an outbound frame.
type Payload interface {
	Encode() ([]byte, error)
}

// TextPayload is sent as-is.
type TextPayload string

// Encode returns the text unchanged.
func (p TextPayload) Encode() ([]byte, error) {
	return []byte(p), nil
}

// JSONPayload is encoded as compact JSON.
type JSONPayload struct {
	Value interface{}
}

// Encode marshals the value.
func (p JSONPayload) Encode() ([]byte, error) {
	return json.Marshal(p.Value)
}

// Report describes the outcome of one broadcast.
type Report struct {
	Attempted int
	Delivered int
	// Pruned holds the ids of connections this broadcast removed from the registry.
	Pruned []string
}

// Broadcaster fans frames out to the connections of a registry.
type Broadcaster struct {
	registry    *ConnectionRegistry
	logger      *logging.Logger
	sendTimeout time.Duration
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithSendTimeout bounds each per-recipient delivery.
func WithSendTimeout(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) {
		b.sendTimeout = d
	}
}

// NewBroadcaster creates a Broadcaster over registry.
func NewBroadcaster(registry *ConnectionRegistry, logger *logging.Logger, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BroadcastAll delivers payload to every registered connection.
func (b *Broadcaster) BroadcastAll(ctx context.Context, payload Payload) (Report, error) {
	return b.broadcast(ctx, payload, nil)
}

// BroadcastExcept delivers payload to every registered connection but sender.
func (b *Broadcaster) BroadcastExcept(ctx context.Context, payload Payload, sender domain.Connection) (Report, error) {
	return b.broadcast(ctx, payload, sender)
}

// SendTo delivers payload to a single connection without touching the registry.
func (b *Broadcaster) SendTo(ctx context.Context, conn domain.Connection, payload Payload) error {
	data, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return b.deliver(ctx, conn, data)
}

// broadcast encodes once, delivers to a registry snapshot concurrently and
// only then prunes the recipients whose delivery failed. A failing recipient
// never stops delivery to the others.
func (b *Broadcaster) broadcast(ctx context.Context, payload Payload, exclude domain.Connection) (Report, error) {
	data, err := payload.Encode()
	if err != nil {
		return Report{}, fmt.Errorf("failed to encode broadcast payload: %w", err)
	}

	var (
		report Report
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []domain.Connection
	)

	for _, conn := range b.registry.Snapshot() {
		if exclude != nil && conn.ID() == exclude.ID() {
			continue
		}
		report.Attempted++

		wg.Add(1)
		go func(conn domain.Connection) {
			defer wg.Done()
			if err := b.deliver(ctx, conn, data); err != nil {
				b.logger.Debug("Broadcast delivery failed", logging.Fields{
					"connection_id": conn.ID(),
					"client_id":     conn.ClientID(),
					"error":         err.Error(),
				})
				mu.Lock()
				failed = append(failed, conn)
				mu.Unlock()
			}
		}(conn)
	}
	wg.Wait()

	report.Delivered = report.Attempted - len(failed)
	metrics.BroadcastDeliveries.WithLabelValues("delivered").Add(float64(report.Delivered))
	metrics.BroadcastDeliveries.WithLabelValues("failed").Add(float64(len(failed)))

	for _, conn := range failed {
		if b.registry.Deregister(conn) {
			report.Pruned = append(report.Pruned, conn.ID())
			metrics.ConnectionsPruned.Inc()
		}
		_ = conn.Close(domain.CloseInternalError, "delivery failed")
	}

	if len(failed) > 0 {
		b.logger.Info("Pruned connections after broadcast", logging.Fields{
			"attempted": report.Attempted,
			"delivered": report.Delivered,
			"pruned":    report.Pruned,
		})
	}
	return report, nil
}

// deliver sends data to one connection. A panicking Send counts as a failed
// delivery so it cannot take the fan-out down with it.
func (b *Broadcaster) deliver(ctx context.Context, conn domain.Connection, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()

	if b.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.sendTimeout)
		defer cancel()
	}
	return conn.Send(ctx, data)
}
