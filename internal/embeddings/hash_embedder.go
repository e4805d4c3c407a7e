package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

// HashEmbedder is the default Embedder: a deterministic pure function that
// derives each vector component from SHA-256(text, component-index), then
// unit-normalizes the result. It satisfies spec.md §4.1's two requirements
// exactly: determinism (SHA-256 is a pure function of its input bytes) and
// ||v||₂ = 1 within float32 rounding error.
//
// This is not a semantic embedding model - cosine similarity between two
// HashEmbedder vectors approximates token-overlap similarity only to the
// extent that normalize() below produces shared substrings, which is
// sufficient for exercising dedup/recall code paths and tests without a
// model dependency (the real model is explicitly out of scope, spec.md §1).
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder constructs a HashEmbedder producing vectors of dim
// dimension. dimension must be positive; callers typically use 256 or 384
// to match common model dimensions referenced elsewhere in config.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) Dimension() int { return h.dimension }

func (h *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.embed(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return h.embed(text)
}

func (h *HashEmbedder) embed(text string) ([]float32, error) {
	normalized := normalizeForEmbedding(text)
	if normalized == "" {
		return nil, ErrEmptyInput
	}

	vec := make([]float32, h.dimension)
	var buf [8]byte
	block := 0
	var digest [32]byte
	remaining := 0

	for i := 0; i < h.dimension; i++ {
		if remaining < 4 {
			binary.BigEndian.PutUint64(buf[:], uint64(block))
			h2 := sha256.New()
			h2.Write([]byte(normalized))
			h2.Write(buf[:])
			copy(digest[:], h2.Sum(nil))
			block++
			remaining = 32
		}
		off := 32 - remaining
		bits := binary.BigEndian.Uint32(digest[off : off+4])
		remaining -= 4
		// Map uint32 -> float in [-1, 1].
		vec[i] = float32(int32(bits)) / float32(math.MaxInt32)
	}

	normalizeUnit(vec)
	return vec, nil
}

// normalizeForEmbedding mirrors the dedup exact-match normalize() rule
// (spec.md §4.5): lowercase and collapse whitespace runs. Using the same
// normalization for embedding input means near-duplicate captures that
// differ only in whitespace/case hash to the same vector too.
func normalizeForEmbedding(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// normalizeUnit scales v in place to unit L2 norm. A zero vector is left
// as-is (cannot be normalized); this cannot occur in practice since embed()
// rejects empty input before reaching here and SHA-256 outputs are
// vanishingly unlikely to be all-zero.
func normalizeUnit(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
