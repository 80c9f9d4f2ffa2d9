package server

import "context"

type Server interface {
	Options() Options
	Start() error
	// Addr is the address the server is listening on once started.
	Addr() string
	Stop(ctx context.Context) error
}
