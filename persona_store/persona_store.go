package personastore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("persona not found")

type Persona struct {
	Id           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Instructions string `yaml:"instructions"`
	Seed         string `yaml:"seed"`
}

type PersonaStore interface {
	Get(ctx context.Context, id string) (Persona, error)
}
