package detect

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type stub struct {
	name string
	fn   func(ctx context.Context, text string, meta Context) (DetectionResult, error)
}

func (s *stub) Name() string    { return s.name }
func (s *stub) Version() string { return "test" }
func (s *stub) Evaluate(ctx context.Context, text string, meta Context) (DetectionResult, error) {
	return s.fn(ctx, text, meta)
}

func firing(name string, confidence float64, category string) *stub {
	return &stub{name: name, fn: func(_ context.Context, _ string, _ Context) (DetectionResult, error) {
		return DetectionResult{Detected: true, Confidence: confidence, Category: category}, nil
	}}
}

func silent(name string) *stub {
	return &stub{name: name, fn: func(_ context.Context, _ string, _ Context) (DetectionResult, error) {
		return DetectionResult{Detected: false}, nil
	}}
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry[Component]()

	if err := r.Register(silent("ok"), 1.0, true); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(silent("bad"), -0.5, true); err == nil {
		t.Error("negative weight accepted")
	}
	if err := r.Register(silent(""), 1.0, true); err == nil {
		t.Error("empty name accepted")
	}
}

func TestRegistrationOrder(t *testing.T) {
	r := NewRegistry[Component]()
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(silent(name), 1.0, true); err != nil {
			t.Fatal(err)
		}
	}

	// Re-registering an existing name keeps its slot.
	if err := r.Register(firing("b", 0.9, "x"), 2.0, true); err != nil {
		t.Fatal(err)
	}
	got := r.EnabledNames()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order after re-register = %v, want %v", got, want)
		}
	}

	// A fresh registration after unregister re-enters at the tail.
	r.Unregister("a")
	if err := r.Register(silent("a"), 1.0, true); err != nil {
		t.Fatal(err)
	}
	got = r.EnabledNames()
	want = []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order after unregister+register = %v, want %v", got, want)
		}
	}
}

func TestAbsentNameMutators(t *testing.T) {
	r := NewRegistry[Component]()

	if r.Unregister("ghost") {
		t.Error("Unregister(absent) = true")
	}
	if r.Enable("ghost") || r.Disable("ghost") {
		t.Error("Enable/Disable(absent) = true")
	}
	if r.SetWeight("ghost", 1.0) {
		t.Error("SetWeight(absent) = true")
	}
	if r.Replace("ghost", silent("ghost"), true) {
		t.Error("Replace(absent) = true")
	}
	if _, ok := r.Get("ghost"); ok {
		t.Error("Get(absent) = ok")
	}
	if r.IsEnabled("ghost") {
		t.Error("IsEnabled(absent) = true")
	}
}

func TestReplacePreservesConfig(t *testing.T) {
	r := NewRegistry[Component]()
	if err := r.Register(silent("det"), 2.5, false); err != nil {
		t.Fatal(err)
	}

	replacement := firing("det", 0.8, "injection")
	if !r.Replace("det", replacement, true) {
		t.Fatal("Replace returned false")
	}

	w, ok := r.GetWeight("det")
	if !ok || w != 2.5 {
		t.Errorf("weight after replace = %v, want 2.5", w)
	}
	if r.IsEnabled("det") {
		t.Error("enabled state not preserved")
	}
	c, _ := r.Get("det")
	res, _ := c.Evaluate(context.Background(), "x", nil)
	if !res.Detected {
		t.Error("Get after replace returned the old component")
	}
}

func TestReplaceResetConfig(t *testing.T) {
	r := NewRegistry[Component]()
	if err := r.Register(silent("det"), 2.5, false); err != nil {
		t.Fatal(err)
	}
	r.Replace("det", silent("det"), false)

	if w, _ := r.GetWeight("det"); w != 1.0 {
		t.Errorf("weight = %v, want reset to 1.0", w)
	}
	if !r.IsEnabled("det") {
		t.Error("enabled not reset to true")
	}
}

func TestRunAllIsolation(t *testing.T) {
	r := NewRegistry[Component]()

	failing := &stub{name: "boom", fn: func(_ context.Context, _ string, _ Context) (DetectionResult, error) {
		return DetectionResult{}, errors.New("backend unavailable")
	}}
	panicking := &stub{name: "panic", fn: func(_ context.Context, _ string, _ Context) (DetectionResult, error) {
		panic("nil map write")
	}}

	for _, c := range []Component{failing, silent("quiet"), panicking} {
		if err := r.Register(c, 1.0, true); err != nil {
			t.Fatal(err)
		}
	}

	results := r.RunAll(context.Background(), "text", nil)
	if len(results) != 3 {
		t.Fatalf("RunAll returned %d results, want 3", len(results))
	}

	// Registration order is preserved.
	if results[0].DetectorName != "boom" || results[1].DetectorName != "quiet" || results[2].DetectorName != "panic" {
		t.Fatalf("result order: %s, %s, %s", results[0].DetectorName, results[1].DetectorName, results[2].DetectorName)
	}

	for _, i := range []int{0, 2} {
		if results[i].Detected {
			t.Errorf("failed component %s reported detected", results[i].DetectorName)
		}
		if results[i].Category != CategoryError {
			t.Errorf("failed component %s category = %s, want error", results[i].DetectorName, results[i].Category)
		}
		if results[i].Description == "" {
			t.Errorf("failed component %s has no description", results[i].DetectorName)
		}
	}
}

func TestRunAllSkipsDisabled(t *testing.T) {
	r := NewRegistry[Component]()
	if err := r.Register(firing("on", 0.9, "x"), 1.0, true); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(firing("off", 0.9, "x"), 1.0, false); err != nil {
		t.Fatal(err)
	}

	results := r.RunAll(context.Background(), "text", nil)
	if len(results) != 1 || results[0].DetectorName != "on" {
		t.Fatalf("results = %+v, want only the enabled component", results)
	}
}

func TestRunAllClampsConfidence(t *testing.T) {
	r := NewRegistry[Component]()
	if err := r.Register(firing("hot", 3.7, "x"), 1.0, true); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(firing("cold", -2, "x"), 1.0, true); err != nil {
		t.Fatal(err)
	}

	for _, res := range r.RunAll(context.Background(), "text", nil) {
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Errorf("%s confidence %v out of range", res.DetectorName, res.Confidence)
		}
	}
}

func TestRunAllStampsIdentity(t *testing.T) {
	r := NewRegistry[Component]()
	if err := r.Register(firing("anon", 0.5, "x"), 1.0, true); err != nil {
		t.Fatal(err)
	}
	res := r.RunAll(context.Background(), "text", nil)
	if res[0].DetectorName != "anon" || res[0].DetectorVersion != "test" {
		t.Errorf("identity not stamped: %+v", res[0])
	}
}

func TestConcurrentMutationDuringRunAll(t *testing.T) {
	r := NewRegistry[Component]()
	for _, name := range []string{"a", "b", "c", "d"} {
		if err := r.Register(silent(name), 1.0, true); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.RunAll(context.Background(), "text", nil)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Disable("b")
				r.SetWeight("c", 2.0)
				r.Enable("b")
			}
		}()
	}
	wg.Wait()
}

func TestNewResultClamps(t *testing.T) {
	c := silent("s")
	if got := NewResult(c, true, 1.5, "x", "d").Confidence; got != 1 {
		t.Errorf("confidence = %v, want 1", got)
	}
	if got := NewResult(c, true, -0.5, "x", "d").Confidence; got != 0 {
		t.Errorf("confidence = %v, want 0", got)
	}
}

func TestWithMetadataCopies(t *testing.T) {
	base := DetectionResult{Metadata: map[string]any{"k": 1}}
	derived := base.WithMetadata("k2", 2)
	if _, ok := base.Metadata["k2"]; ok {
		t.Error("WithMetadata mutated the original map")
	}
	if derived.Metadata["k"] != 1 || derived.Metadata["k2"] != 2 {
		t.Errorf("derived metadata = %v", derived.Metadata)
	}
}
