package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/sentinel-seed/sentinel/pkg/httputil"
)

// NewOllamaEmbedding returns an embedding function backed by an Ollama
// server's /api/embeddings endpoint.
func NewOllamaEmbedding(model, baseURL string) chromem.EmbeddingFunc {
	client := httputil.NewClient(30 * time.Second)

	return func(ctx context.Context, text string) ([]float32, error) {
		body, err := json.Marshal(map[string]string{
			"model":  model,
			"prompt": text,
		})
		if err != nil {
			return nil, fmt.Errorf("semantic: marshal embedding request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("semantic: build embedding request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("semantic: embedding request: %w", err)
		}
		defer httputil.DrainAndClose(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("semantic: embedding service returned %d", resp.StatusCode)
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("semantic: decode embedding response: %w", err)
		}
		if len(result.Embedding) == 0 {
			return nil, fmt.Errorf("semantic: embedding service returned empty vector")
		}
		return result.Embedding, nil
	}
}
