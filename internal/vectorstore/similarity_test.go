package vectorstore

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1.0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestVectorEncodeDecode(t *testing.T) {
	v := []float32{0.1, -2.5, 3.25, 0}
	got := decodeVector(encodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("length %d", len(got))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: got %f, want %f", i, got[i], v[i])
		}
	}
}
