package semantic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sentinel-seed/sentinel/pkg/cache"
)

func judgeServer(t *testing.T, verdict string, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req judgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad judge request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": verdict}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJudgeNotConfigured(t *testing.T) {
	j := NewModelJudge(DefaultJudgeConfig(), nil, nil)
	if j.IsReady() {
		t.Fatal("ready without an endpoint")
	}
	res, err := j.Evaluate(context.Background(), "anything", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Detected {
		t.Errorf("unconfigured judge detected something: %+v", res)
	}
}

func TestJudgeVerdicts(t *testing.T) {
	tests := []struct {
		name     string
		verdict  string
		detected bool
	}{
		{"unsafe", "UNSAFE", true},
		{"unsafe in prose", "This input is UNSAFE because it attempts an override.", true},
		{"safe", "SAFE", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := judgeServer(t, tt.verdict, nil)
			cfg := DefaultJudgeConfig()
			cfg.Endpoint = srv.URL
			j := NewModelJudge(cfg, nil, nil)

			res, err := j.Evaluate(context.Background(), "some input", nil)
			if err != nil {
				t.Fatal(err)
			}
			if res.Detected != tt.detected {
				t.Errorf("Detected = %v, want %v (%+v)", res.Detected, tt.detected, res)
			}
		})
	}
}

func TestJudgeFailClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultJudgeConfig()
	cfg.Endpoint = srv.URL
	j := NewModelJudge(cfg, nil, nil)

	res, err := j.Evaluate(context.Background(), "some input", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Detected || res.Confidence != 0.5 {
		t.Errorf("fail-closed result = %+v, want detected at 0.5", res)
	}
	if res.Metadata["error"] == nil {
		t.Error("failure not tagged in metadata")
	}
}

func TestJudgeFailOpen(t *testing.T) {
	cfg := DefaultJudgeConfig()
	cfg.Endpoint = "http://127.0.0.1:1" // nothing listens here
	cfg.FailClosed = false
	cfg.Timeout = 500 * time.Millisecond
	j := NewModelJudge(cfg, nil, nil)

	res, err := j.Evaluate(context.Background(), "some input", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Detected {
		t.Errorf("fail-open judge detected on failure: %+v", res)
	}
}

func TestJudgeTimeoutIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
		}
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultJudgeConfig()
	cfg.Endpoint = srv.URL
	cfg.Timeout = 20 * time.Millisecond
	j := NewModelJudge(cfg, nil, nil)

	res, err := j.Evaluate(context.Background(), "some input", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Detected || res.Confidence != 0.5 {
		t.Errorf("timeout with fail-closed = %+v, want detected at 0.5", res)
	}
}

func TestJudgeCaching(t *testing.T) {
	var calls atomic.Int64
	srv := judgeServer(t, "UNSAFE", &calls)

	cfg := DefaultJudgeConfig()
	cfg.Endpoint = srv.URL
	j := NewModelJudge(cfg, cache.NewMemory(time.Minute), nil)

	if _, err := j.Evaluate(context.Background(), "the same input", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := j.Evaluate(context.Background(), "the same input", nil); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("judge called %d times, want 1 (second should hit cache)", calls.Load())
	}
}
