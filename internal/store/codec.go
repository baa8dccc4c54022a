// internal/store/codec.go
package store

import (
	"encoding/binary"
	"math"

	"github.com/acmecorp/hrdesk/internal/fault"
)

// EncodeVector serializes an embedding as little-endian float32 bytes for
// BLOB storage.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a little-endian float32 BLOB back into an
// embedding.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fault.Errorf(fault.KindStorage, "invalid embedding blob length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors of
// equal length. Zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	normA := vectorNorm(a)
	if normA == 0 {
		return 0
	}
	normB := vectorNorm(b)
	if normB == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

func vectorNorm(v []float32) float64 {
	sum := 0.0
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}
