package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/w-h-a/companion"
	"github.com/w-h-a/companion/cmd/internal/wiring"
)

var (
	cfg struct {
		wiring.Config `embed:""`

		// Chat config
		Persona string `help:"Persona to talk to" default:"ada" env:"PERSONA"`
		User    string `help:"User identifier for the conversation" default:"local" env:"CHAT_USER"`
		Verbose bool   `help:"Log to stderr" default:"false"`
	}
)

func main() {
	// Parse inputs
	_ = kong.Parse(&cfg, kong.Name("companion-chat"), kong.Description("Chat with a persona in the terminal."))

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Close(closeCtx)
	}()

	fmt.Printf("Chatting with %s as %s. Type a message and press enter, empty line to quit.\n", cfg.Persona, cfg.User)

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if len(input) == 0 {
			fmt.Println("Goodbye!")
			return
		}

		sess, err := c.Respond(ctx, companion.Request{
			PersonaId: cfg.Persona,
			UserId:    cfg.User,
			Prompt:    input,
		}, companion.NewWriterSink(os.Stdout))
		if errors.Is(err, companion.ErrRateLimited) {
			fmt.Println("Slow down a little and try again.")
			continue
		}
		if err != nil {
			fmt.Println("Error generating response:", err)
			continue
		}

		if _, err := sess.Wait(ctx); err != nil {
			return
		}
	}
}
