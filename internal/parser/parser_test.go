package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"

	"khata/internal/cache"
	"khata/internal/core"
)

func TestRuleParser(t *testing.T) {
	p := NewRuleParser(nil, nil)
	tests := []struct {
		name     string
		text     string
		title    string
		amount   string
		category string
	}{
		{"keyword and amount", "chai 40", "chai", "40", "Food"},
		{"comma decimal", "uber 230,50 to office", "uber to office", "230.5", "Transport"},
		{"rupee prefix", "₹1200 electricity", "electricity", "1200", "Bills"},
		{"rs prefix", "Rs 99 netflix", "netflix", "99", "Entertainment"},
		{"unknown words", "gift for ravi 500", "gift for ravi", "500", core.DefaultCategory},
		{"no amount", "medicine", "medicine", "", "Health"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.text, err)
			}
			if got.Title != tt.title {
				t.Errorf("Title = %q, want %q", got.Title, tt.title)
			}
			if got.Category != tt.category {
				t.Errorf("Category = %q, want %q", got.Category, tt.category)
			}
			switch {
			case tt.amount == "" && got.Amount != nil:
				t.Errorf("Amount = %s, want nil", got.Amount)
			case tt.amount != "" && (got.Amount == nil || got.Amount.String() != tt.amount):
				t.Errorf("Amount = %v, want %s", got.Amount, tt.amount)
			}
		})
	}

	if _, err := p.Parse(context.Background(), "   "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty input error = %v, want ErrEmptyInput", err)
	}
}

type fakeGenerator struct {
	reply string
	err   error
	calls int
	seen  string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.seen = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

func TestGeminiParser(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		amount   string
		category string
	}{
		{"plain json", `{"title":"Lunch","amount":"250.00","category":"food","confidence":0.9}`, "250", "Food"},
		{"fenced json", "```json\n{\"title\":\"Lunch\",\"amount\":250,\"category\":\"Food\",\"confidence\":0.9}\n```", "250", "Food"},
		{"unknown category", `{"title":"Lunch","amount":"","category":"Snacks","confidence":2}`, "", core.DefaultCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: tt.reply}
			p := newGeminiParser(gen, "", nil)
			got, err := p.Parse(context.Background(), "lunch 250")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got.Title != "Lunch" || got.Category != tt.category {
				t.Errorf("got %+v", got)
			}
			if tt.amount == "" && got.Amount != nil {
				t.Errorf("Amount = %s, want nil", got.Amount)
			}
			if tt.amount != "" && (got.Amount == nil || got.Amount.String() != tt.amount) {
				t.Errorf("Amount = %v, want %s", got.Amount, tt.amount)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %v, want within [0,1]", got.Confidence)
			}
		})
	}
}

func TestGeminiParserErrors(t *testing.T) {
	p := newGeminiParser(&fakeGenerator{err: errors.New("quota")}, "", nil)
	if _, err := p.Parse(context.Background(), "lunch"); err == nil {
		t.Error("expected error from failing model")
	}
	p = newGeminiParser(&fakeGenerator{reply: "I cannot help"}, "", nil)
	if _, err := p.Parse(context.Background(), "lunch"); err == nil {
		t.Error("expected error for non-JSON reply")
	}
	p = newGeminiParser(&fakeGenerator{reply: ""}, "", nil)
	if _, err := p.Parse(context.Background(), "lunch"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty reply error = %v, want ErrUnavailable", err)
	}
}

func TestFallbackParser(t *testing.T) {
	rules := NewRuleParser(nil, nil)
	failing := newGeminiParser(&fakeGenerator{err: errors.New("unavailable")}, "", nil)

	got, err := NewFallbackParser("gemini", failing, rules, time.Second).Parse(context.Background(), "chai 40")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.Category != "Food" {
		t.Errorf("Category = %q, want rule result Food", got.Category)
	}

	got, err = NewFallbackParser("disabled", nil, nil, 0).Parse(context.Background(), "chai 40")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.Category != core.DefaultCategory || got.Title != "chai 40" || got.Amount != nil {
		t.Errorf("disabled parser = %+v, want General default", got)
	}
}

func TestCachedParser(t *testing.T) {
	gen := &fakeGenerator{reply: `{"title":"Chai","amount":"40","category":"Food","confidence":0.8}`}
	lru := cache.NewLRUCache[Result](8, time.Minute)
	p := NewCachedParser(newGeminiParser(gen, "", nil), "gemini", lru)

	for _, text := range []string{"Chai 40", "  chai   40 "} {
		if _, err := p.Parse(context.Background(), text); err != nil {
			t.Fatalf("Parse(%q) error = %v", text, err)
		}
	}
	if gen.calls != 1 {
		t.Errorf("model calls = %d, want 1", gen.calls)
	}
	if lru.Size() != 1 {
		t.Errorf("cache size = %d, want 1", lru.Size())
	}
}

func TestNewDisabled(t *testing.T) {
	p, lru, err := New(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if lru != nil {
		t.Error("disabled parser should not allocate a cache")
	}
	got, _ := p.Parse(context.Background(), "uber 100")
	if got.Category != core.DefaultCategory {
		t.Errorf("Category = %q, want %q", got.Category, core.DefaultCategory)
	}
}

func TestNewRulesOnlyWithCache(t *testing.T) {
	p, lru, err := New(context.Background(), Options{Enabled: true, CacheSize: 4, CacheTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if lru == nil {
		t.Fatal("expected cache")
	}
	got, _ := p.Parse(context.Background(), "uber 100")
	if got.Category != "Transport" {
		t.Errorf("Category = %q, want Transport", got.Category)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                       `{"a":1}`,
		"```json\n{\"a\":1}\n```":       `{"a":1}`,
		"Sure! {\"a\":1} hope it helps": `{"a":1}`,
	}
	for in, want := range tests {
		if got := cleanModelJSON(in); got != want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
