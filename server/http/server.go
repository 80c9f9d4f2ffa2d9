package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/w-h-a/companion/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type httpServer struct {
	options  server.Options
	srv      *http.Server
	listener net.Listener
	errCh    chan error
	mtx      sync.RWMutex
}

func (s *httpServer) Options() server.Options {
	return s.options
}

func (s *httpServer) Start() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}

	l, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return err
	}

	s.listener = l

	slog.Info("server listening", "name", s.options.Name, "address", l.Addr().String())

	go func() {
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped unexpectedly", "name", s.options.Name, "error", err)
			s.errCh <- err
		}
		close(s.errCh)
	}()

	return nil
}

func (s *httpServer) Addr() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.listener == nil {
		return s.options.Address
	}

	return s.listener.Addr().String()
}

// Stop stops accepting connections and waits for in-flight requests until
// ctx is done.
func (s *httpServer) Stop(ctx context.Context) error {
	s.mtx.RLock()
	started := s.listener != nil
	s.mtx.RUnlock()

	if !started {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}

	return <-s.errCh
}

func NewServer(opts ...server.Option) server.Server {
	options := server.NewOptions(opts...)

	handler, ok := HandlerFrom(options.Context)
	if !ok {
		detail := "an http handler is required"
		slog.ErrorContext(options.Context, detail)
		panic(detail)
	}

	if ms, ok := MiddlewareFrom(options.Context); ok {
		for i := len(ms) - 1; i >= 0; i-- {
			handler = ms[i](handler)
		}
	}

	readHeaderTimeout := 10 * time.Second
	if d, ok := ReadHeaderTimeoutFrom(options.Context); ok {
		readHeaderTimeout = d
	}

	s := &httpServer{
		options: options,
		srv: &http.Server{
			Handler:           otelhttp.NewHandler(handler, options.Name),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		errCh: make(chan error, 1),
	}

	return s
}
