package storage

import "errors"

// Connector errors.
var (
	// ErrConnection is returned when a session cannot be established.
	ErrConnection = errors.New("connection failed")

	// ErrQuery is returned when a statement fails to execute or its rows
	// cannot be read.
	ErrQuery = errors.New("query failed")

	// ErrNotConnected is returned by ExecuteQuery outside a session.
	ErrNotConnected = errors.New("connector is not connected")
)
