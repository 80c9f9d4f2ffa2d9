package google

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/w-h-a/companion/generator"
	"google.golang.org/api/iterator"
	genaiopt "google.golang.org/api/option"
)

type googleGenerator struct {
	options generator.Options
	client  *genai.Client
}

func (g *googleGenerator) Stream(ctx context.Context, prompt string) (generator.Stream, error) {
	model := g.client.GenerativeModel(g.options.Model)
	model.SetMaxOutputTokens(int32(g.options.MaxTokens))
	model.SetTemperature(float32(g.options.Temperature))

	ctx, cancel := context.WithCancel(ctx)

	iter := model.GenerateContentStream(ctx, genai.Text(g.options.FullPrompt(prompt)))

	return &googleStream{iter: iter, cancel: cancel}, nil
}

type googleStream struct {
	iter    *genai.GenerateContentResponseIterator
	cancel  context.CancelFunc
	pending []string
}

func (s *googleStream) Recv() (string, error) {
	for len(s.pending) == 0 {
		rsp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}

		for _, cand := range rsp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok && len(text) > 0 {
					s.pending = append(s.pending, string(text))
				}
			}
			break
		}
	}

	token := s.pending[0]
	s.pending = s.pending[1:]

	return token, nil
}

func (s *googleStream) Close() error {
	s.cancel()
	return nil
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	g := &googleGenerator{
		options: options,
	}

	client, err := genai.NewClient(
		context.Background(),
		genaiopt.WithAPIKey(options.ApiKey),
	)
	if err != nil {
		detail := "failed to create client for google generator"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	g.client = client

	return g
}
