package generator

import "context"

type Generator interface {
	Stream(ctx context.Context, prompt string) (Stream, error)
}

// Stream yields generated tokens in order. Recv returns io.EOF once the
// model has finished; any other error means the generation failed.
type Stream interface {
	Recv() (string, error)
	Close() error
}
