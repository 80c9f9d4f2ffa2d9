package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/companion/memory_manager/providers/storer"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// qdrantStorer talks to the qdrant REST api. All personas share one
// collection and every read is filtered on the namespace payload field.
type qdrantStorer struct {
	options storer.Options
	client  *http.Client
	base    string
}

func (s *qdrantStorer) Upsert(ctx context.Context, namespace string, content string, metadata map[string]any, vector []float32) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	body := struct {
		Points []point `json:"points"`
	}{
		Points: []point{{
			Id:     id.String(),
			Vector: vector,
			Payload: memoryPayload{
				Namespace: namespace,
				Content:   content,
				Metadata:  metadata,
				StoredAt:  time.Now().UnixMilli(),
			},
		}},
	}

	return s.call(ctx, http.MethodPut, s.collectionPath("points")+"?wait=true", body, nil)
}

func (s *qdrantStorer) Search(ctx context.Context, namespace string, vector []float32, limit int) ([]storer.Record, error) {
	if limit < 1 {
		return nil, nil
	}

	body := map[string]any{
		"query":        vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": "namespace", "match": map[string]any{"value": namespace}},
			},
		},
	}

	var rsp envelope[queryResult]

	if err := s.call(ctx, http.MethodPost, s.collectionPath("points", "query"), body, &rsp); err != nil {
		return nil, err
	}

	records := make([]storer.Record, 0, len(rsp.Result.Points))

	for _, p := range rsp.Result.Points {
		// a point written without the filter field is not ours
		if p.Payload.Namespace != namespace {
			continue
		}

		at := p.Payload.storedAt()

		records = append(records, storer.Record{
			Id:        p.Id,
			Namespace: p.Payload.Namespace,
			Content:   p.Payload.Content,
			Metadata:  p.Payload.Metadata,
			Embedding: p.Vector,
			Score:     float32(p.Score),
			CreatedAt: at,
			UpdatedAt: at,
		})
	}

	return records, nil
}

func (s *qdrantStorer) call(ctx context.Context, method string, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	if len(s.options.ApiKey) > 0 {
		req.Header.Set("api-key", s.options.ApiKey)
	}

	rsp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	bs, err := io.ReadAll(rsp.Body)
	if err != nil {
		return err
	}

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		return &apiError{Code: rsp.StatusCode, Body: string(bs)}
	}

	if out == nil || len(bs) == 0 {
		return nil
	}

	return json.Unmarshal(bs, out)
}

func (s *qdrantStorer) collectionPath(parts ...string) string {
	path := "/collections/" + url.PathEscape(s.options.Collection)
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

// ensureCollection creates the collection and its payload indexes the
// first time the storer sees an empty server.
func (s *qdrantStorer) ensureCollection(ctx context.Context) error {
	err := s.call(ctx, http.MethodGet, s.collectionPath(), nil, nil)

	var apiErr *apiError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound:
	default:
		return err
	}

	distance := s.options.Distance
	if len(distance) == 0 {
		distance = "Cosine"
	}

	vectors := map[string]any{
		"vectors": map[string]any{"size": s.options.VectorSize, "distance": distance},
	}

	if err := s.call(ctx, http.MethodPut, s.collectionPath(), vectors, nil); err != nil {
		return err
	}

	indexes := map[string]string{
		"namespace": "keyword",
		"stored_at": "integer",
	}

	for field, schema := range indexes {
		index := map[string]any{"field_name": field, "field_schema": schema}
		if err := s.call(ctx, http.MethodPut, s.collectionPath("index")+"?wait=true", index, nil); err != nil {
			return err
		}
	}

	return nil
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	if len(options.Location) == 0 || options.VectorSize == 0 {
		panic("missing location or vector size for qdrant storer")
	}

	s := &qdrantStorer{
		options: options,
		base:    strings.TrimRight(options.Location, "/"),
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.ensureCollection(ctx); err != nil {
		detail := "failed to configure collection for qdrant storer"
		slog.ErrorContext(ctx, detail, "error", err)
		panic(detail)
	}

	return s
}
