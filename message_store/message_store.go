package messagestore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("message not found")

type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

type Message struct {
	Id        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	UserId    string    `json:"userId"`
	PersonaId string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type MessageStore interface {
	Create(ctx context.Context, content string, role Role, userId string, personaId string) (string, error)
	Update(ctx context.Context, id string, content string) error
	Delete(ctx context.Context, id string) error
	// List returns the user's messages with a persona, oldest first.
	List(ctx context.Context, personaId string, userId string) ([]Message, error)
}
