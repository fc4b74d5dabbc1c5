package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const DefaultHashingDim = 256

// Hashing is a deterministic bag-of-words embedder. Each lower-cased word is
// hashed into one of Dim buckets with a hash-derived sign. Texts sharing
// words get a positive cosine similarity; it needs no model or network.
type Hashing struct {
	Dim int
}

func NewHashing(dim int) Hashing {
	if dim <= 0 {
		dim = DefaultHashingDim
	}
	return Hashing{Dim: dim}
}

func (h Hashing) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultHashingDim
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t, dim)
	}
	return out, nil
}

func (Hashing) vector(text string, dim int) []float32 {
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New64a()
		f.Write([]byte(w))
		sum := f.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		v[sum%uint64(dim)] += sign
	}
	return v
}
