package rpc

import (
	"errors"
)

var (
	// ErrNilExecutor is reported when a call is started without a context.
	ErrNilExecutor = errors.New("rpc: nil executor")

	// ErrNilConn is reported when a call is started without a connection.
	ErrNilConn = errors.New("rpc: nil client connection")

	// ErrNilClientContext is reported when a call is started without a
	// [ClientContext].
	ErrNilClientContext = errors.New("rpc: nil client context")
)
