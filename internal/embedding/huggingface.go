package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/finsight/finsight/internal/models"
)

const defaultHFBaseURL = "https://api-inference.huggingface.co"

// HFConfig configures the Hugging Face Inference API embedder.
type HFConfig struct {
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

// HFEmbedder calls the Hugging Face Inference API feature-extraction pipeline.
// It performs no retries: a failed embedding aborts the calling operation,
// since no similarity search is possible without the vector.
type HFEmbedder struct {
	baseURL   string
	model     string
	apiKey    string
	dimension int
	batchSize int
	client    *http.Client
}

// NewHFEmbedder creates an embedder for the given model and dimension.
func NewHFEmbedder(cfg HFConfig) (*HFEmbedder, error) {
	if cfg.Model == "" {
		return nil, models.Validationf("embedding model is required")
	}
	if cfg.Dimension <= 0 {
		return nil, models.Validationf("embedding dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHFBaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HFEmbedder{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		client:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Embed returns the embedding for a single text.
func (e *HFEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, splitting into provider-sized batches so
// one remote call covers many texts.
func (e *HFEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *HFEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"inputs":  texts,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &models.ProviderError{Provider: "huggingface", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.ProviderError{Provider: "huggingface", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.ProviderError{
			Provider: "huggingface",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(body)),
		}
	}

	var vecs [][]float32
	if err := json.Unmarshal(body, &vecs); err != nil {
		return nil, &models.ProviderError{Provider: "huggingface", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(vecs) != len(texts) {
		return nil, &models.ProviderError{
			Provider: "huggingface",
			Err:      fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(texts)),
		}
	}
	for _, v := range vecs {
		if len(v) != e.dimension {
			return nil, &models.DimensionMismatchError{Want: e.dimension, Got: len(v)}
		}
	}
	return vecs, nil
}

func truncateBody(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Dimensions returns the configured embedding dimension.
func (e *HFEmbedder) Dimensions() int { return e.dimension }

// Close is a no-op for HFEmbedder.
func (e *HFEmbedder) Close() error { return nil }
