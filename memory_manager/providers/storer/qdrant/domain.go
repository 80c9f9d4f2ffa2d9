package qdrant

import (
	"fmt"
	"time"
)

// memoryPayload is what every point carries besides its vector. stored_at
// is unix milliseconds so it can back an integer payload index.
type memoryPayload struct {
	Namespace string         `json:"namespace"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	StoredAt  int64          `json:"stored_at"`
}

func (p memoryPayload) storedAt() time.Time {
	if p.StoredAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(p.StoredAt).UTC()
}

type point struct {
	Id      string        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload memoryPayload `json:"payload"`
}

type scoredPoint struct {
	Id      string        `json:"id"`
	Score   float64       `json:"score"`
	Payload memoryPayload `json:"payload"`
	Vector  []float32     `json:"vector"`
}

type queryResult struct {
	Points []scoredPoint `json:"points"`
}

type envelope[T any] struct {
	Result T `json:"result"`
}

// apiError is any non-2xx reply.
type apiError struct {
	Code int
	Body string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("qdrant replied %d: %s", e.Code, e.Body)
}
