package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/w-h-a/companion/authorizer"
	headerauthorizer "github.com/w-h-a/companion/authorizer/header"
	oidcauthorizer "github.com/w-h-a/companion/authorizer/oidc"
	"github.com/w-h-a/companion/generator"
	anthropicgenerator "github.com/w-h-a/companion/generator/anthropic"
	googlegenerator "github.com/w-h-a/companion/generator/google"
	openaigenerator "github.com/w-h-a/companion/generator/openai"
	"github.com/w-h-a/companion/limiter"
	"github.com/w-h-a/companion/limiter/token"
	memorymanager "github.com/w-h-a/companion/memory_manager"
	"github.com/w-h-a/companion/memory_manager/munin"
	"github.com/w-h-a/companion/memory_manager/providers/embedder"
	googleembedder "github.com/w-h-a/companion/memory_manager/providers/embedder/google"
	hashembedder "github.com/w-h-a/companion/memory_manager/providers/embedder/hash"
	openaiembedder "github.com/w-h-a/companion/memory_manager/providers/embedder/openai"
	"github.com/w-h-a/companion/memory_manager/providers/sortedset"
	memorysortedset "github.com/w-h-a/companion/memory_manager/providers/sortedset/memory"
	redissortedset "github.com/w-h-a/companion/memory_manager/providers/sortedset/redis"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
	chromemstorer "github.com/w-h-a/companion/memory_manager/providers/storer/chromem"
	memorystorer "github.com/w-h-a/companion/memory_manager/providers/storer/memory"
	neo4jstorer "github.com/w-h-a/companion/memory_manager/providers/storer/neo4j"
	postgresstorer "github.com/w-h-a/companion/memory_manager/providers/storer/postgres"
	qdrantstorer "github.com/w-h-a/companion/memory_manager/providers/storer/qdrant"
	messagestore "github.com/w-h-a/companion/message_store"
	memorymessagestore "github.com/w-h-a/companion/message_store/memory"
	postgresmessagestore "github.com/w-h-a/companion/message_store/postgres"
	personastore "github.com/w-h-a/companion/persona_store"
	filepersonastore "github.com/w-h-a/companion/persona_store/file"
	postgrespersonastore "github.com/w-h-a/companion/persona_store/postgres"
)

// Config is the provider selection shared by the binaries.
type Config struct {
	// Persona config
	Personas         string `help:"Persona catalog: file or postgres" default:"file" enum:"file,postgres" env:"PERSONAS"`
	PersonasLocation string `help:"Path of the YAML catalog or postgres DSN" default:"personas.yaml" env:"PERSONAS_LOCATION"`

	// Message config
	Messages         string `help:"Message store: memory or postgres" default:"memory" enum:"memory,postgres" env:"MESSAGES"`
	MessagesLocation string `help:"Postgres DSN for the message store" default:"" env:"MESSAGES_LOCATION"`

	// Short-term memory config
	History          string        `help:"History store: memory or redis" default:"memory" enum:"memory,redis" env:"HISTORY"`
	HistoryLocation  string        `help:"Redis address or URL" default:"localhost:6379" env:"HISTORY_LOCATION"`
	HistoryPassword  string        `help:"Redis password" default:"" env:"HISTORY_PASSWORD"`
	HistoryDatabase  int           `help:"Redis database" default:"0" env:"HISTORY_DATABASE"`
	HistoryLimit     int           `help:"Entries kept per conversation" default:"30" env:"HISTORY_LIMIT"`
	HistoryRetention time.Duration `help:"Age beyond which entries are not read" default:"24h" env:"HISTORY_RETENTION"`

	// Long-term memory config
	Storer           string `help:"Vector store: chromem, memory, postgres, qdrant or neo4j" default:"chromem" enum:"chromem,memory,postgres,qdrant,neo4j" env:"STORER"`
	StorerLocation   string `help:"Vector store location; a directory for chromem" default:"" env:"STORER_LOCATION"`
	StorerApiKey     string `help:"Vector store API key" default:"" env:"STORER_API_KEY"`
	StorerUsername   string `help:"Vector store user" default:"" env:"STORER_USERNAME"`
	StorerPassword   string `help:"Vector store password" default:"" env:"STORER_PASSWORD"`
	StorerCollection string `help:"Collection, table or database holding memories" default:"" env:"STORER_COLLECTION"`
	RecallLimit      int    `help:"Memories recalled per turn" default:"3" env:"RECALL_LIMIT"`

	// Embedder config
	Embedder           string `help:"Embedder: hash, openai or google" default:"hash" enum:"hash,openai,google" env:"EMBEDDER"`
	EmbedderKey        string `help:"API key for the embedder" default:"" env:"EMBEDDER_KEY"`
	EmbedderModel      string `help:"Model identifier for the embedder" default:"text-embedding-3-small" env:"EMBEDDER_MODEL"`
	EmbedderLocation   string `help:"Base URL for an OpenAI compatible embedder" default:"" env:"EMBEDDER_LOCATION"`
	EmbedderDimensions int    `help:"Embedding size" default:"384" env:"EMBEDDER_DIMENSIONS"`

	// Generator config
	Generator         string  `help:"Generator: openai, anthropic or google" default:"openai" enum:"openai,anthropic,google" env:"GENERATOR"`
	GeneratorKey      string  `help:"API key for the generator" default:"" env:"GENERATOR_KEY"`
	GeneratorModel    string  `help:"Model identifier for the generator" default:"gpt-4o-mini" env:"GENERATOR_MODEL"`
	GeneratorLocation string  `help:"Base URL for the generator API" default:"" env:"GENERATOR_LOCATION"`
	GeneratorPrefix   string  `help:"Text placed before every prompt, such as a house style" default:"" env:"GENERATOR_PREFIX"`
	MaxTokens         int     `help:"Maximum tokens generated per reply" default:"2048" env:"MAX_TOKENS"`
	Temperature       float64 `help:"Sampling temperature" default:"0.7" env:"TEMPERATURE"`
	RepetitionPenalty float64 `help:"Penalty for repeated tokens" default:"1.1" env:"REPETITION_PENALTY"`

	// Session config
	CheckpointInterval time.Duration `help:"Interval between partial response writes" default:"1s" env:"CHECKPOINT_INTERVAL"`

	// Limiter config
	RateRequests int           `help:"Requests allowed per window per persona and user" default:"10" env:"RATE_REQUESTS"`
	RateWindow   time.Duration `help:"Rate limit window" default:"10s" env:"RATE_WINDOW"`
}

func PersonaStore(cfg Config) personastore.PersonaStore {
	opts := []personastore.Option{
		personastore.WithLocation(cfg.PersonasLocation),
	}

	switch cfg.Personas {
	case "postgres":
		return postgrespersonastore.NewPersonaStore(opts...)
	default:
		return filepersonastore.NewPersonaStore(opts...)
	}
}

func MessageStore(cfg Config) messagestore.MessageStore {
	switch cfg.Messages {
	case "postgres":
		return postgresmessagestore.NewMessageStore(messagestore.WithLocation(cfg.MessagesLocation))
	default:
		return memorymessagestore.NewMessageStore()
	}
}

func MemoryManager(cfg Config) memorymanager.MemoryManager {
	return munin.NewMemoryManager(
		memorymanager.WithSortedSet(SortedSet(cfg)),
		memorymanager.WithStorer(Storer(cfg)),
		memorymanager.WithEmbedder(Embedder(cfg)),
		memorymanager.WithHistoryLimit(cfg.HistoryLimit),
		memorymanager.WithHistoryWindow(cfg.HistoryRetention),
		memorymanager.WithRecallLimit(cfg.RecallLimit),
	)
}

func SortedSet(cfg Config) sortedset.SortedSet {
	switch cfg.History {
	case "redis":
		return redissortedset.NewSortedSet(
			sortedset.WithLocation(cfg.HistoryLocation),
			sortedset.WithPassword(cfg.HistoryPassword),
			sortedset.WithDatabase(cfg.HistoryDatabase),
		)
	default:
		return memorysortedset.NewSortedSet()
	}
}

func Storer(cfg Config) storer.Storer {
	opts := []storer.Option{
		storer.WithLocation(cfg.StorerLocation),
		storer.WithApiKey(cfg.StorerApiKey),
		storer.WithVectorSize(cfg.EmbedderDimensions),
	}

	if len(cfg.StorerUsername) > 0 {
		opts = append(opts, storer.WithBasicAuth(cfg.StorerUsername, cfg.StorerPassword))
	}

	collection := cfg.StorerCollection
	if len(collection) == 0 && cfg.Storer == "neo4j" {
		collection = "neo4j"
	}
	if len(collection) > 0 {
		opts = append(opts, storer.WithCollection(collection))
	}

	switch cfg.Storer {
	case "postgres":
		return postgresstorer.NewStorer(opts...)
	case "qdrant":
		return qdrantstorer.NewStorer(opts...)
	case "neo4j":
		return neo4jstorer.NewStorer(opts...)
	case "memory":
		return memorystorer.NewStorer(opts...)
	default:
		return chromemstorer.NewStorer(opts...)
	}
}

func Embedder(cfg Config) embedder.Embedder {
	opts := []embedder.Option{
		embedder.WithApiKey(cfg.EmbedderKey),
		embedder.WithModel(cfg.EmbedderModel),
		embedder.WithLocation(cfg.EmbedderLocation),
		embedder.WithDimensions(cfg.EmbedderDimensions),
	}

	switch cfg.Embedder {
	case "openai":
		return openaiembedder.NewEmbedder(opts...)
	case "google":
		return googleembedder.NewEmbedder(opts...)
	default:
		return hashembedder.NewEmbedder(opts...)
	}
}

func Generator(cfg Config) generator.Generator {
	opts := []generator.Option{
		generator.WithApiKey(cfg.GeneratorKey),
		generator.WithModel(cfg.GeneratorModel),
		generator.WithLocation(cfg.GeneratorLocation),
		generator.WithPromptPrefix(cfg.GeneratorPrefix),
		generator.WithMaxTokens(cfg.MaxTokens),
		generator.WithTemperature(cfg.Temperature),
		generator.WithRepetitionPenalty(cfg.RepetitionPenalty),
	}

	switch cfg.Generator {
	case "anthropic":
		return anthropicgenerator.NewGenerator(opts...)
	case "google":
		return googlegenerator.NewGenerator(opts...)
	default:
		return openaigenerator.NewGenerator(opts...)
	}
}

func Limiter(cfg Config) limiter.Limiter {
	return token.NewLimiter(
		limiter.WithRequests(cfg.RateRequests),
		limiter.WithWindow(cfg.RateWindow),
	)
}

func Authorizer(kind string, header string, issuer string, clientId string) authorizer.Authorizer {
	switch kind {
	case "oidc":
		if len(issuer) == 0 {
			detail := "an issuer is required for oidc auth"
			slog.ErrorContext(context.Background(), detail)
			panic(detail)
		}
		return oidcauthorizer.NewAuthorizer(
			authorizer.WithIssuer(issuer),
			authorizer.WithClientId(clientId),
		)
	case "header":
		return headerauthorizer.NewAuthorizer(authorizer.WithHeader(header))
	}

	panic(fmt.Sprintf("unknown auth %q", kind))
}
