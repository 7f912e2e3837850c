package server

import "errors"

// Common errors in the server package
var (
	// ErrConnectionClosed is returned when sending on a connection that has been closed
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrMissingClientID is returned when a real-time connection is opened without a client id
	ErrMissingClientID = errors.New("client id is required")
)
