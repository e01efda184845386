package parser

import (
	"context"
	"fmt"
	"time"

	"khata/internal/cache"
)

// Options selects and tunes the parser chain built by New.
type Options struct {
	Enabled    bool
	APIKey     string
	Model      string
	Timeout    time.Duration
	CacheSize  int
	CacheTTL   time.Duration
	Categories []string
}

// New builds rule-based parsing, optionally fronted by Gemini, behind an LRU
// cache. A disabled parser answers every request with Default. The returned
// cache is nil when caching is off; callers may register it for cleanup.
func New(ctx context.Context, opts Options) (Parser, *cache.LRUCache[Result], error) {
	if !opts.Enabled {
		return NewFallbackParser("disabled", nil, nil, 0), nil, nil
	}
	rules := NewRuleParser(nil, opts.Categories)

	var (
		primary Parser
		name    = "rules"
	)
	if opts.APIKey != "" {
		g, err := NewGeminiParser(ctx, opts.APIKey, opts.Model, opts.Categories)
		if err != nil {
			return nil, nil, fmt.Errorf("create gemini parser: %w", err)
		}
		primary, name = g, "gemini"
	}

	var p Parser = NewFallbackParser(name, primary, rules, opts.Timeout)
	if opts.CacheSize <= 0 {
		return p, nil, nil
	}
	lru := cache.NewLRUCache[Result](opts.CacheSize, opts.CacheTTL)
	return NewCachedParser(p, name, lru), lru, nil
}
