package file

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	personastore "github.com/w-h-a/companion/persona_store"
	"gopkg.in/yaml.v3"
)

type catalog struct {
	Personas []personastore.Persona `yaml:"personas"`
}

// filePersonaStore serves a catalog read once from a yaml file.
type filePersonaStore struct {
	options  personastore.Options
	personas map[string]personastore.Persona
}

func (s *filePersonaStore) Get(ctx context.Context, id string) (personastore.Persona, error) {
	p, ok := s.personas[id]
	if !ok {
		return personastore.Persona{}, personastore.ErrNotFound
	}
	return p, nil
}

func parseFile(path string) (map[string]personastore.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	var c catalog

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&c); err != nil {
		return nil, err
	}

	personas := make(map[string]personastore.Persona, len(c.Personas))

	for i, p := range c.Personas {
		if len(strings.TrimSpace(p.Id)) == 0 || len(strings.TrimSpace(p.Name)) == 0 {
			return nil, fmt.Errorf("persona %d: id and name are required", i)
		}
		if _, dup := personas[p.Id]; dup {
			return nil, fmt.Errorf("persona %s: duplicate id", p.Id)
		}
		personas[p.Id] = p
	}

	return personas, nil
}

func NewPersonaStore(opts ...personastore.Option) personastore.PersonaStore {
	options := personastore.NewOptions(opts...)

	personas, err := parseFile(options.Location)
	if err != nil {
		detail := "failed to load catalog for file persona store"
		slog.ErrorContext(context.Background(), detail, "error", err, "path", options.Location)
		panic(detail)
	}

	s := &filePersonaStore{
		options:  options,
		personas: personas,
	}

	return s
}
