package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxCloseReason is the payload limit of a close frame minus the code.
const maxCloseReason = 123

type httpSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (s *httpSink) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.w.Write([]byte(token)); err != nil {
		return err
	}

	return s.rc.Flush()
}

// Close has nothing to send. The handler aborts the response when the
// session did not commit.
func (s *httpSink) Close(cause error) error {
	return nil
}

func newHTTPSink(w http.ResponseWriter) *httpSink {
	return &httpSink{w: w, rc: http.NewResponseController(w)}
}

type wsSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mtx          sync.Mutex
}

func (s *wsSink) Write(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))

	return s.conn.WriteMessage(websocket.TextMessage, []byte(token))
}

func (s *wsSink) Close(cause error) error {
	code := websocket.CloseNormalClosure
	reason := ""
	if cause != nil {
		code = closeCodeFor(cause)
		reason = errorText(cause)
	}

	return s.close(code, reason)
}

func (s *wsSink) close(code int, reason string) error {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)

	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{conn: conn, writeTimeout: 10 * time.Second}
}
