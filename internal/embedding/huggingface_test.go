package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finsight/finsight/internal/models"
)

func newTestServer(t *testing.T, dim int, status int) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		var req struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vecs := make([][]float32, len(req.Inputs))
		for i := range vecs {
			vec := make([]float32, dim)
			vec[0] = float32(i + 1)
			vecs[i] = vec
		}
		_ = json.NewEncoder(w).Encode(vecs)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestHFEmbedder_Batch(t *testing.T) {
	srv, calls := newTestServer(t, 4, http.StatusOK)
	e, err := NewHFEmbedder(HFConfig{
		BaseURL: srv.URL, Model: "test-model", Dimension: 4, BatchSize: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 4 {
			t.Errorf("vector %d dimension: %d", i, len(v))
		}
	}
	// Batch size 2 means 3 texts take 2 remote calls.
	if *calls != 2 {
		t.Errorf("expected 2 remote calls, got %d", *calls)
	}
}

func TestHFEmbedder_OrderPreserved(t *testing.T) {
	srv, _ := newTestServer(t, 2, http.StatusOK)
	e, _ := NewHFEmbedder(HFConfig{BaseURL: srv.URL, Model: "m", Dimension: 2, BatchSize: 8})
	vecs, err := e.EmbedBatch(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("order not preserved: %v", vecs)
	}
}

func TestHFEmbedder_ProviderError(t *testing.T) {
	srv, _ := newTestServer(t, 4, http.StatusServiceUnavailable)
	e, _ := NewHFEmbedder(HFConfig{BaseURL: srv.URL, Model: "m", Dimension: 4})
	_, err := e.Embed(context.Background(), "text")
	if !models.IsProvider(err) {
		t.Errorf("expected ProviderError, got %v", err)
	}
}

func TestHFEmbedder_DimensionMismatch(t *testing.T) {
	srv, _ := newTestServer(t, 8, http.StatusOK)
	e, _ := NewHFEmbedder(HFConfig{BaseURL: srv.URL, Model: "m", Dimension: 4})
	_, err := e.Embed(context.Background(), "text")
	if !models.IsDimensionMismatch(err) {
		t.Errorf("expected DimensionMismatchError, got %v", err)
	}
}

func TestHFEmbedder_ConfigValidation(t *testing.T) {
	if _, err := NewHFEmbedder(HFConfig{Dimension: 4}); err == nil {
		t.Error("missing model should fail")
	}
	if _, err := NewHFEmbedder(HFConfig{Model: "m"}); err == nil {
		t.Error("missing dimension should fail")
	}
}
