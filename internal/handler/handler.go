package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/w-h-a/companion/authorizer"
	"github.com/w-h-a/companion/internal/service/chat"
	"github.com/w-h-a/companion/internal/service/session"
	messagestore "github.com/w-h-a/companion/message_store"
)

type Chat interface {
	Respond(ctx context.Context, req chat.Request, sink session.Sink) (*session.Session, error)
	ListMessages(ctx context.Context, personaId string, userId string) ([]messagestore.Message, error)
}

// NewRouter mounts the chat routes. Every /api route authenticates the
// caller before doing anything else.
func NewRouter(c Chat, auth authorizer.Authorizer) *mux.Router {
	h := &chatHandler{chat: c, auth: auth, upgrader: newUpgrader()}

	r := mux.NewRouter()

	r.HandleFunc("/healthz", health).Methods(http.MethodGet)

	r.HandleFunc("/api/chat/{personaId}", h.Respond).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/{personaId}/ws", h.Stream).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/{personaId}/messages", h.Messages).Methods(http.MethodGet)

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
