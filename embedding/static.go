package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/shreyasgurav/UniMemory/fingerprint"
)

// StaticProvider produces deterministic embeddings from token counts with
// no external calls. Texts sharing tokens get similar vectors, which is
// enough for tests and offline smoke runs.
type StaticProvider struct {
	dims int
}

// NewStaticProvider creates a provider with the given vector width.
func NewStaticProvider(dims int) *StaticProvider {
	if dims <= 0 {
		dims = 64
	}
	return &StaticProvider{dims: dims}
}

// Embed hashes each token into a bucket and normalizes the result.
func (p *StaticProvider) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, p.dims)
	for token := range fingerprint.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%p.dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

// Dimensions returns the vector width.
func (p *StaticProvider) Dimensions() int { return p.dims }
