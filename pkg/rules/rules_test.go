package rules

import (
	"context"
	"testing"
)

func testRules() []Rule {
	return []Rule{
		{ID: "no-medical-advice", Description: "must not give medical dosage advice", Category: "compliance",
			Kind: KindRegex, Pattern: `\b(?:dosage|prescribe|milligrams)\b`, Severity: SeverityHigh, Enabled: true},
		{ID: "no-financial-guarantee", Description: "must not guarantee returns", Category: "compliance",
			Kind: KindContains, Pattern: "guaranteed returns", Severity: SeverityMedium, Enabled: true},
		{ID: "disabled-rule", Description: "inactive", Category: "compliance",
			Kind: KindContains, Pattern: "inactive marker", Severity: SeverityLow, Enabled: false},
	}
}

func TestLoadAndCheck(t *testing.T) {
	r := NewRegistry()
	if err := r.Load(testRules()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		text    string
		wantIDs []string
	}{
		{"regex rule", "the recommended dosage is 50mg", []string{"no-medical-advice"}},
		{"contains rule case-insensitive", "these are Guaranteed Returns, trust me", []string{"no-financial-guarantee"}},
		{"disabled rule silent", "this has the inactive marker", nil},
		{"clean", "have a nice day", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := r.Check(tt.text)
			if len(violations) != len(tt.wantIDs) {
				t.Fatalf("Check(%q) = %d violations, want %d", tt.text, len(violations), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if violations[i].Rule.ID != id {
					t.Errorf("violation %d = %s, want %s", i, violations[i].Rule.ID, id)
				}
			}
		})
	}
}

func TestLoadValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Load([]Rule{{ID: "", Pattern: "x"}}); err == nil {
		t.Error("rule without id accepted")
	}
	if err := r.Load([]Rule{{ID: "a", Pattern: ""}}); err == nil {
		t.Error("rule without pattern accepted")
	}
	if err := r.Load([]Rule{{ID: "a", Kind: KindRegex, Pattern: "[unclosed"}}); err == nil {
		t.Error("malformed regex accepted")
	}
	if err := r.Load([]Rule{{ID: "a", Kind: "shell", Pattern: "x"}}); err == nil {
		t.Error("unsupported kind accepted")
	}
	if err := r.Load([]Rule{
		{ID: "dup", Kind: KindContains, Pattern: "x"},
		{ID: "dup", Kind: KindContains, Pattern: "y"},
	}); err == nil {
		t.Error("duplicate ids accepted")
	}

	// A failed load leaves previous contents untouched.
	if err := r.Load(testRules()); err != nil {
		t.Fatal(err)
	}
	if err := r.Load([]Rule{{ID: "bad", Kind: KindRegex, Pattern: "[unclosed"}}); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := r.Get("no-medical-advice"); !ok {
		t.Error("failed load wiped previous rules")
	}
}

func TestRuntimeMutation(t *testing.T) {
	r := NewRegistry()
	if err := r.Load(testRules()); err != nil {
		t.Fatal(err)
	}

	if !r.Disable("no-medical-advice") {
		t.Fatal("Disable returned false")
	}
	if len(r.Check("the dosage is 50mg")) != 0 {
		t.Error("disabled rule still fires")
	}
	if !r.Enable("no-medical-advice") {
		t.Fatal("Enable returned false")
	}
	if len(r.Check("the dosage is 50mg")) != 1 {
		t.Error("re-enabled rule does not fire")
	}

	if r.Enable("ghost") || r.Disable("ghost") || r.Remove("ghost") {
		t.Error("absent-id mutator returned true")
	}

	if !r.Remove("disabled-rule") {
		t.Fatal("Remove returned false")
	}
	if len(r.List()) != 2 {
		t.Errorf("List() has %d rules after remove, want 2", len(r.List()))
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
rules:
  - id: no-legal-advice
    description: must not draft contracts
    category: compliance
    kind: contains
    pattern: "draft a contract"
    severity: high
    enabled: true
  - id: pii-echo
    description: must not repeat card numbers
    category: compliance
    kind: regex
    pattern: '\b4[0-9]{12}(?:[0-9]{3})?\b'
    severity: critical
    enabled: true
`)
	rules, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("parsed %d rules, want 2", len(rules))
	}
	if rules[0].ID != "no-legal-advice" || rules[0].Kind != KindContains {
		t.Errorf("rule 0 = %+v", rules[0])
	}

	r := NewRegistry()
	if err := r.Load(rules); err != nil {
		t.Fatal(err)
	}
	if len(r.Check("please draft a contract for my landlord")) != 1 {
		t.Error("parsed rule does not fire")
	}
}

func TestChecker(t *testing.T) {
	r := NewRegistry()
	if err := r.Load(testRules()); err != nil {
		t.Fatal(err)
	}
	c := NewChecker(r)

	res, err := c.Evaluate(context.Background(), "dosage is 50 milligrams, with guaranteed returns", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Detected {
		t.Fatalf("checker did not fire: %+v", res)
	}
	if res.Category != "compliance" {
		t.Errorf("category = %s", res.Category)
	}
	// High-severity rule dominates, plus one corroborating violation.
	if res.Confidence <= severityScore[SeverityHigh]-0.01 {
		t.Errorf("confidence = %v, want at least the high-severity score", res.Confidence)
	}

	res, err = c.Evaluate(context.Background(), "all clear here", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Detected {
		t.Errorf("checker fired on clean text: %+v", res)
	}
}
