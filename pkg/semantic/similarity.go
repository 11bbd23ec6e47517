// Package semantic provides the optional detector adapters backed by
// external capability: vector similarity against known attack exemplars, and
// a model-based judge. Both satisfy the detect.Component contract and
// degrade to "nothing detected" when their backend is unavailable, so the
// pipeline always keeps its pattern-detection baseline.
package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/sentinel-seed/sentinel/pkg/cache"
	"github.com/sentinel-seed/sentinel/pkg/detect"
)

// Exemplar is one known attack (or benign counterexample) loaded into the
// vector store. Exemplar sets are handed in as in-memory data; callers own
// any file loading.
type Exemplar struct {
	Text     string `yaml:"text" json:"text"`
	Category string `yaml:"category" json:"category"`
	Severity string `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// SimilarityConfig tunes the similarity adapter.
type SimilarityConfig struct {
	// Threshold is the minimum similarity for a match to count as a threat.
	Threshold float32
	// PerMatchBoost is added to the best score per extra corroborating match.
	PerMatchBoost float64
	// MaxConfidence caps the reported confidence.
	MaxConfidence float64
	// TopK is how many neighbours each query retrieves.
	TopK int
	// Timeout bounds one backend call; expiry counts as a call failure.
	Timeout time.Duration
	// CacheTTL bounds how long a verdict is reused for identical content.
	CacheTTL time.Duration
	// FailClosed controls the failure policy. Similarity defaults to
	// fail-open: pattern detectors provide a baseline, so a broken backend
	// should not block traffic.
	FailClosed bool
}

// DefaultSimilarityConfig returns the adapter defaults.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		Threshold:     0.65,
		PerMatchBoost: 0.05,
		MaxConfidence: 0.95,
		TopK:          3,
		Timeout:       5 * time.Second,
		CacheTTL:      10 * time.Minute,
		FailClosed:    false,
	}
}

// SimilarityDetector compares text against attack exemplars in an in-memory
// vector store.
type SimilarityDetector struct {
	cfg        SimilarityConfig
	db         *chromem.DB
	collection *chromem.Collection
	store      cache.Store
	logger     *zap.Logger

	mu    sync.RWMutex
	ready bool
}

// NewSimilarityDetector builds the adapter around a caller-supplied
// embedding function. A nil store disables caching; a nil logger is
// replaced with a nop.
func NewSimilarityDetector(cfg SimilarityConfig, embed chromem.EmbeddingFunc, store cache.Store, logger *zap.Logger) (*SimilarityDetector, error) {
	if embed == nil {
		return nil, fmt.Errorf("semantic: embedding function is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("attack_exemplars", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("semantic: create collection: %w", err)
	}

	return &SimilarityDetector{
		cfg:        cfg,
		db:         db,
		collection: collection,
		store:      store,
		logger:     logger,
	}, nil
}

// LoadExemplars embeds the exemplar set and marks the adapter ready. An
// empty set leaves the adapter not ready.
func (d *SimilarityDetector) LoadExemplars(ctx context.Context, exemplars []Exemplar) error {
	if len(exemplars) == 0 {
		return fmt.Errorf("semantic: empty exemplar set")
	}

	docs := make([]chromem.Document, len(exemplars))
	for i, e := range exemplars {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("exemplar_%d", i),
			Content: e.Text,
			Metadata: map[string]string{
				"category": e.Category,
				"severity": e.Severity,
			},
		}
	}
	if err := d.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("semantic: add exemplars: %w", err)
	}

	d.mu.Lock()
	d.ready = true
	d.mu.Unlock()
	d.logger.Info("similarity exemplars loaded", zap.Int("count", len(exemplars)))
	return nil
}

// IsReady reports whether the adapter has a usable backing set.
func (d *SimilarityDetector) IsReady() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

func (d *SimilarityDetector) Name() string    { return "semantic_similarity" }
func (d *SimilarityDetector) Version() string { return "1.0" }

// Evaluate queries the vector store for the nearest exemplars. Not-ready
// degrades to "nothing detected"; a backend failure or timeout follows the
// configured fail policy.
func (d *SimilarityDetector) Evaluate(ctx context.Context, text string, meta detect.Context) (detect.DetectionResult, error) {
	if !d.IsReady() {
		return detect.NewResult(d, false, 0, detect.CategoryInjection, "similarity backend not ready"), nil
	}

	key := "sem:" + contentKey(text, meta.GetString("history"))
	if res, ok := d.cached(ctx, key); ok {
		return res, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	topK := d.cfg.TopK
	if n := d.collection.Count(); n < topK {
		topK = n
	}
	results, err := d.collection.Query(callCtx, strings.ToLower(text), topK, nil, nil)
	if err != nil {
		d.logger.Warn("similarity query failed", zap.Error(err))
		return d.failResult(err), nil
	}

	res := d.verdict(results)
	d.cache(ctx, key, res)
	return res, nil
}

// verdict converts nearest-neighbour results into a DetectionResult.
// Confidence is the best score plus a fixed boost per extra corroborating
// match, capped at MaxConfidence.
func (d *SimilarityDetector) verdict(results []chromem.Result) detect.DetectionResult {
	if len(results) == 0 {
		return detect.NewResult(d, false, 0, detect.CategoryInjection, "no similar exemplars")
	}

	best := results[0]
	category := best.Metadata["category"]
	if best.Similarity < d.cfg.Threshold || category == "benign" {
		return detect.NewResult(d, false, float64(best.Similarity), detect.CategoryInjection,
			"below similarity threshold")
	}

	corroborating := 0
	for _, r := range results[1:] {
		if r.Similarity >= d.cfg.Threshold && r.Metadata["category"] != "benign" {
			corroborating++
		}
	}
	conf := float64(best.Similarity) + d.cfg.PerMatchBoost*float64(corroborating)
	if conf > d.cfg.MaxConfidence {
		conf = d.cfg.MaxConfidence
	}

	return detect.NewResult(d, true, conf, category,
		fmt.Sprintf("similar to known %s exemplar", category)).
		WithEvidence(best.Content).
		WithMetadata("similarity", float64(best.Similarity)).
		WithMetadata("corroborating_matches", corroborating)
}

// failResult applies the fail-open/fail-closed policy to a backend failure.
func (d *SimilarityDetector) failResult(err error) detect.DetectionResult {
	if d.cfg.FailClosed {
		return detect.NewResult(d, true, 0.5, detect.CategoryInjection,
			"similarity backend failed, failing closed").
			WithMetadata("error", err.Error())
	}
	return detect.NewResult(d, false, 0, detect.CategoryInjection,
		"similarity backend failed, failing open").
		WithMetadata("error", err.Error())
}

func (d *SimilarityDetector) cached(ctx context.Context, key string) (detect.DetectionResult, bool) {
	if d.store == nil {
		return detect.DetectionResult{}, false
	}
	raw, ok := d.store.Get(ctx, key)
	if !ok {
		return detect.DetectionResult{}, false
	}
	var res detect.DetectionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		d.store.Delete(ctx, key)
		return detect.DetectionResult{}, false
	}
	return res, true
}

func (d *SimilarityDetector) cache(ctx context.Context, key string, res detect.DetectionResult) {
	if d.store == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	d.store.Set(ctx, key, raw, d.cfg.CacheTTL)
}

// contentKey hashes the text plus any surrounding context, so the same text
// in a different conversation is cached separately.
func contentKey(text, context string) string {
	h := sha256.New()
	h.Write([]byte(text))
	if context != "" {
		h.Write([]byte{0})
		h.Write([]byte(context))
	}
	return hex.EncodeToString(h.Sum(nil))
}
