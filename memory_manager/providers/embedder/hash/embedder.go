package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/w-h-a/companion/memory_manager/providers/embedder"
)

// hashEmbedder projects lowercased word counts into a fixed number of
// signed buckets. Texts sharing words land close together, which is enough
// for offline runs and tests.
type hashEmbedder struct {
	options embedder.Options
}

func (e *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.options.Dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()

		idx := sum % uint64(len(vec))
		sign := float32(1)
		if (sum>>63)&1 == 1 {
			sign = -1
		}

		vec[idx] += sign
	}

	return normalize(vec), nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}

	return vec
}

func NewEmbedder(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	if options.Dimensions < 1 {
		panic("dimensions must be positive for hash embedder")
	}

	return &hashEmbedder{
		options: options,
	}
}
