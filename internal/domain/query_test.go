package domain

import (
	"errors"
	"testing"
)

func validQuery() Query {
	return Query{
		Text:        "parse json files",
		VectorTypes: []string{TypeSemantic, TypeCategories},
		Limit:       10,
	}
}

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Query)
		wantOK bool
	}{
		{"valid", func(*Query) {}, true},
		{"empty text", func(q *Query) { q.Text = "   " }, false},
		{"no vector types", func(q *Query) { q.VectorTypes = nil }, false},
		{"empty vector type", func(q *Query) { q.VectorTypes = []string{""} }, false},
		{"zero limit", func(q *Query) { q.Limit = 0 }, false},
		{"negative limit", func(q *Query) { q.Limit = -3 }, false},
		{"unknown strategy", func(q *Query) { q.Strategy = "best-effort" }, false},
		{"known strategy", func(q *Query) { q.Strategy = StrategyHybrid }, true},
		{"negative rrf k", func(q *Query) { q.RRFK = -1 }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := validQuery()
			tc.mutate(&q)
			err := q.Validate()
			if tc.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.wantOK {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidQuery) {
					t.Errorf("expected ErrInvalidQuery, got %v", err)
				}
			}
		})
	}
}

func TestQueryFingerprint_Deterministic(t *testing.T) {
	q := validQuery()
	q.Filter = map[string]string{"category": "dev", "lang": "go"}

	fp := q.Fingerprint()
	for i := 0; i < 10; i++ {
		if got := q.Fingerprint(); got != fp {
			t.Fatalf("fingerprint not deterministic: %s != %s", got, fp)
		}
	}
}

func TestQueryFingerprint_NormalizesText(t *testing.T) {
	a := validQuery()
	b := validQuery()
	b.Text = "  Parse JSON Files "

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("expected fingerprints to match after normalization")
	}
}

func TestQueryFingerprint_SensitiveToOptions(t *testing.T) {
	base := validQuery()

	changed := validQuery()
	changed.Limit = 20
	if base.Fingerprint() == changed.Fingerprint() {
		t.Error("limit change should change fingerprint")
	}

	changed = validQuery()
	changed.VectorTypes = []string{TypeCategories, TypeSemantic}
	if base.Fingerprint() == changed.Fingerprint() {
		t.Error("vector type order should change fingerprint")
	}

	changed = validQuery()
	changed.Filter = map[string]string{"category": "dev"}
	if base.Fingerprint() == changed.Fingerprint() {
		t.Error("filter should change fingerprint")
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched length", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Cosine(%v, %v) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestPayloadAccessors(t *testing.T) {
	p := Payload{
		"name":        "jq",
		"description": "command-line JSON processor",
		"category":    "cli",
		"url":         "https://example.com/jq",
		"version":     "1.7",
		"stars":       4821,
	}

	if v, ok := p.Name(); !ok || v != "jq" {
		t.Errorf("Name() = %q, %v", v, ok)
	}
	if v, ok := p.Category(); !ok || v != "cli" {
		t.Errorf("Category() = %q, %v", v, ok)
	}
	if _, ok := p.String("stars"); ok {
		t.Error("non-string field should not be returned")
	}
	if _, ok := p.String("missing"); ok {
		t.Error("missing field should not be returned")
	}

	var nilPayload Payload
	if _, ok := nilPayload.Name(); ok {
		t.Error("nil payload should report no fields")
	}
}
