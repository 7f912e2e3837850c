package server

import (
	"context"
	"fmt"

	"github.com/FreePeak/smart-slides/internal/domain"
	"github.com/FreePeak/smart-slides/internal/infrastructure/logging"
	"github.com/FreePeak/smart-slides/internal/infrastructure/metrics"
)

// Router runs the receive loop of each real-time connection and dispatches
// inbound frames to the broadcaster.
type Router struct {
	registry    *ConnectionRegistry
	broadcaster *Broadcaster
	logger      *logging.Logger
}

// NewRouter creates a Router.
func NewRouter(registry *ConnectionRegistry, broadcaster *Broadcaster, logger *logging.Logger) *Router {
	return &Router{
		registry:    registry,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Serve registers conn and processes its frames in arrival order until the
// channel fails or ctx is cancelled. conn is always deregistered on return.
func (r *Router) Serve(ctx context.Context, conn domain.Connection) {
	log := r.logger.With(logging.Fields{
		"connection_id": conn.ID(),
		"client_id":     conn.ClientID(),
	})

	r.registry.Register(conn)
	defer r.registry.Deregister(conn)
	log.Info("Client connected", logging.Fields{"connections": r.registry.Count()})

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close(domain.CloseGoingAway, "server shutting down")
	})
	defer stop()

	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			log.Info("Client disconnected", logging.Fields{"reason": err.Error()})
			return
		}

		if err := r.dispatch(ctx, conn, raw); err != nil {
			log.Error("Closing connection after dispatch failure", logging.Fields{"error": err.Error()})
			_ = conn.Close(domain.CloseInternalError, "internal server error")
			return
		}
	}
}

// dispatch handles one inbound frame. Panics are turned into errors so that
// a failure stays confined to this connection's loop.
func (r *Router) dispatch(ctx context.Context, conn domain.Connection, raw []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while dispatching: %v", rec)
		}
	}()

	switch msg := domain.DecodeInbound(raw).(type) {
	case *domain.StructuredMessage:
		if msg.Type == domain.TypeEdit {
			return r.handleEdit(ctx, conn, msg)
		}
		metrics.MessagesReceived.WithLabelValues("structured").Inc()
		_, err = r.broadcaster.BroadcastAll(ctx, TextPayload(msg.Raw))
		return err

	case domain.PlainText:
		metrics.MessagesReceived.WithLabelValues("text").Inc()
		relay := domain.PlainTextRelay(conn.ClientID(), msg.Text)
		_, err = r.broadcaster.BroadcastExcept(ctx, TextPayload(relay), conn)
		return err

	default:
		return fmt.Errorf("unknown inbound message %T", msg)
	}
}

func (r *Router) handleEdit(ctx context.Context, conn domain.Connection, msg *domain.StructuredMessage) error {
	switch outcome := domain.ValidateEdit(msg, conn.ClientID()).(type) {
	case domain.ValidEdit:
		metrics.MessagesReceived.WithLabelValues("edit").Inc()
		_, err := r.broadcaster.BroadcastAll(ctx, JSONPayload{Value: outcome.Payload})
		return err

	case domain.InvalidEdit:
		metrics.MessagesReceived.WithLabelValues("invalid_edit").Inc()
		r.logger.Debug("Rejected edit payload", logging.Fields{
			"client_id": conn.ClientID(),
			"missing":   outcome.Missing,
		})
		if err := r.broadcaster.SendTo(ctx, conn, JSONPayload{Value: domain.NewErrorMessage(outcome.Reason)}); err != nil {
			return fmt.Errorf("failed to send error reply: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown edit outcome %T", outcome)
	}
}
