package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/w-h-a/companion/authorizer"
	"github.com/w-h-a/companion/internal/service/chat"
	messagestore "github.com/w-h-a/companion/message_store"
)

const maxBodyBytes = 64 << 10

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatHandler struct {
	chat     Chat
	auth     authorizer.Authorizer
	upgrader websocket.Upgrader
}

// Respond streams the reply as chunked plain text. Once the first token is
// out the status can no longer change, so a failed session aborts the
// connection instead.
func (h *chatHandler) Respond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userId, err := h.auth.Authorize(r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	req, err := decode(r.Body)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-cache")

	sess, err := h.chat.Respond(ctx, chat.Request{
		PersonaId: mux.Vars(r)["personaId"],
		UserId:    userId,
		Prompt:    req.Prompt,
	}, newHTTPSink(w))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	<-sess.Done()

	if out := sess.Outcome(); !out.Committed() {
		panic(http.ErrAbortHandler)
	}
}

// Stream is the WebSocket variant of Respond. The first client frame
// carries the prompt; the close frame tells the client how it ended.
func (h *chatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userId, err := h.auth.Authorize(r)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxBodyBytes)

	sink := newWSSink(conn)

	_, raw, err := conn.ReadMessage()
	if err != nil {
		slog.DebugContext(r.Context(), "websocket closed before prompt", "error", err)
		return
	}

	var req chatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sink.close(websocket.CloseInvalidFramePayloadData, "invalid json")
		return
	}

	// the connection is hijacked, so only the reader notices a hang-up
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sess, err := h.chat.Respond(ctx, chat.Request{
		PersonaId: mux.Vars(r)["personaId"],
		UserId:    userId,
		Prompt:    req.Prompt,
	}, sink)
	if err != nil {
		h.log(ctx, err)
		sink.close(closeCodeFor(err), errorText(err))
		return
	}

	<-sess.Done()

	// give the client a moment to answer the close frame
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
}

func (h *chatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userId, err := h.auth.Authorize(r)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	msgs, err := h.chat.ListMessages(ctx, mux.Vars(r)["personaId"], userId)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	if msgs == nil {
		msgs = []messagestore.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		slog.ErrorContext(ctx, "failed to encode messages", "error", err)
	}
}

func (h *chatHandler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	h.log(ctx, err)
	http.Error(w, errorText(err), statusFor(err))
}

func (h *chatHandler) log(ctx context.Context, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "chat request failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "chat request rejected", "error", err)
}

func decode(body io.Reader) (chatRequest, error) {
	var req chatRequest

	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return chatRequest{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	return req, nil
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}
