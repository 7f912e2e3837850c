package domain

import "context"

// Close codes used when the server ends a real-time channel.
const (
	CloseNormal        = 1000
	CloseGoingAway     = 1001
	CloseInternalError = 1011
)

// Connection is a bidirectional real-time channel to exactly one client.
type Connection interface {
	// ID returns the process-lifetime identity token assigned by the transport.
	ID() string

	// ClientID returns the client supplied identifier used for attribution.
	// It is not unique: two connections may share one.
	ClientID() string

	// Send delivers one text frame. An error means the channel is unusable.
	Send(ctx context.Context, data []byte) error

	// Receive blocks until the next inbound frame arrives or the channel fails.
	Receive(ctx context.Context) ([]byte, error)

	// Close ends the channel with the given close code and reason.
	Close(code int, reason string) error
}

// ConnectionRegistry tracks the live connections of one process.
type ConnectionRegistry interface {
	// Register adds conn; registering the same connection twice is a no-op.
	Register(conn Connection)

	// Deregister removes conn if present and reports whether it was a member.
	Deregister(conn Connection) bool

	// Snapshot returns a stable copy of the current membership.
	Snapshot() []Connection

	// Count returns the number of live connections.
	Count() int
}
