package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/cors"
	"github.com/w-h-a/companion"
	"github.com/w-h-a/companion/cmd/internal/wiring"
	"github.com/w-h-a/companion/internal/handler"
	"github.com/w-h-a/companion/internal/telemetry"
	"github.com/w-h-a/companion/server"
	httpserver "github.com/w-h-a/companion/server/http"
)

var version = "dev"

var (
	cfg struct {
		wiring.Config `embed:""`

		// Server config
		Address       string        `help:"Address to listen on" default:":8080" env:"ADDRESS"`
		CorsOrigins   []string      `help:"Origins allowed to call the API" default:"*" env:"CORS_ORIGINS"`
		ShutdownGrace time.Duration `help:"Time allowed for in-flight sessions on shutdown" default:"30s" env:"SHUTDOWN_GRACE"`

		// Auth config
		Auth         string `help:"Caller authentication: header or oidc" default:"header" enum:"header,oidc" env:"AUTH"`
		AuthHeader   string `help:"Header carrying the user id for header auth" default:"X-User-Id" env:"AUTH_HEADER"`
		OidcIssuer   string `help:"OIDC issuer URL" default:"" env:"OIDC_ISSUER"`
		OidcClientId string `help:"OIDC client id expected in the token audience" default:"" env:"OIDC_CLIENT_ID"`

		// Telemetry config
		LogLevel     string `help:"Log level" default:"info" enum:"debug,info,warn,error" env:"LOG_LEVEL"`
		OtlpEndpoint string `help:"OTLP/HTTP collector URL; empty disables export" default:"" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	}
)

func main() {
	// Parse inputs
	_ = kong.Parse(&cfg, kong.Name("companion-server"), kong.Description("Streams persona replies with conversational memory."))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Configure telemetry
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(base))

	providers, err := telemetry.Setup(
		ctx,
		telemetry.WithName("companion"),
		telemetry.WithVersion(version),
		telemetry.WithEndpoint(cfg.OtlpEndpoint),
	)
	if err != nil {
		detail := "failed to set up telemetry"
		slog.ErrorContext(ctx, detail, "error", err)
		panic(detail)
	}

	slog.SetDefault(slog.New(providers.Handler(base)))

	// Create companion
	c := companion.New(
		wiring.PersonaStore(cfg.Config),
		wiring.MessageStore(cfg.Config),
		wiring.MemoryManager(cfg.Config),
		wiring.Generator(cfg.Config),
		wiring.Limiter(cfg.Config),
		cfg.GeneratorModel,
		companion.WithCheckpointInterval(cfg.CheckpointInterval),
	)

	// Create server
	router := handler.NewRouter(c, wiring.Authorizer(cfg.Auth, cfg.AuthHeader, cfg.OidcIssuer, cfg.OidcClientId))

	srv := httpserver.NewServer(
		server.WithName("companion"),
		server.WithAddress(cfg.Address),
		httpserver.WithHandler(router),
		httpserver.WithMiddleware(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CorsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", cfg.AuthHeader},
			MaxAge:         300,
		})),
	)

	if err := srv.Start(); err != nil {
		detail := "failed to start server"
		slog.ErrorContext(ctx, detail, "error", err)
		panic(detail)
	}

	<-ctx.Done()
	stop()

	slog.Info("shutting down", "grace", cfg.ShutdownGrace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("failed to stop server", "error", err)
	}

	if err := c.Close(shutdownCtx); err != nil {
		slog.Error("sessions still running at shutdown", "error", err, "sessions", c.ListSessionIds(shutdownCtx))
	}

	if err := providers.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to flush telemetry", "error", err)
	}
}
