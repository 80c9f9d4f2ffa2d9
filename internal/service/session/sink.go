package session

import (
	"context"
	"fmt"
	"io"
)

// Sink is the caller-facing side of a session. Write delivers one token;
// Close is called exactly once with the abort cause, or nil on success.
type Sink interface {
	Write(ctx context.Context, token string) error
	Close(cause error) error
}

type flusher interface {
	Flush() error
}

type writerSink struct {
	w io.Writer
}

func (s *writerSink) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := io.WriteString(s.w, token); err != nil {
		return err
	}

	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}

	return nil
}

func (s *writerSink) Close(cause error) error {
	if cause != nil {
		_, err := fmt.Fprintf(s.w, "\n[response interrupted: %v]\n", cause)
		return err
	}

	_, err := io.WriteString(s.w, "\n")
	if err != nil {
		return err
	}

	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}

	return nil
}

// NewWriterSink streams tokens to w, flushing after each one when w
// supports it.
func NewWriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}
