package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/FreePeak/smart-slides/internal/domain"
	"github.com/FreePeak/smart-slides/internal/infrastructure/logging"
)

// ClientIDParam is the path wildcard holding the client identifier.
const ClientIDParam = "client_id"

// WebSocketHandler upgrades /ws/chat/{client_id} requests and hands the
// resulting connection to the Router.
type WebSocketHandler struct {
	ctx      context.Context
	router   *Router
	upgrader websocket.Upgrader
	options  WebSocketOptions
	logger   *logging.Logger
}

// WebSocketHandlerConfig contains configuration options for the WebSocket handler.
type WebSocketHandlerConfig struct {
	// AllowedOrigins restricts the Origin header; empty allows every origin.
	AllowedOrigins []string
	Options        WebSocketOptions
}

// NewWebSocketHandler creates a handler. Connections live until they close
// or ctx is cancelled; ctx should span the server's lifetime, not a request.
func NewWebSocketHandler(ctx context.Context, router *Router, logger *logging.Logger, config WebSocketHandlerConfig) *WebSocketHandler {
	return &WebSocketHandler{
		ctx:    ctx,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(config.AllowedOrigins),
		},
		options: config.Options,
		logger:  logger,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue(ClientIDParam)
	if clientID == "" {
		http.Error(w, ErrMissingClientID.Error(), http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error.
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed", logging.Fields{
			"client_id": clientID,
			"error":     err.Error(),
		})
		return
	}

	conn := NewWebSocketConnection(ws, clientID, h.options)
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Connection handler panicked", logging.Fields{
				"client_id": clientID,
				"panic":     rec,
			})
			_ = conn.Close(domain.CloseInternalError, "internal server error")
		}
	}()

	h.router.Serve(h.ctx, conn)
	_ = conn.Close(domain.CloseNormal, "")
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimSuffix(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
