package parser

import (
	"context"
	"strings"

	"khata/internal/cache"
	"khata/internal/metrics"
)

// CachedParser memoizes successful parses by normalized input text.
type CachedParser struct {
	next  Parser
	name  string
	cache cache.Cache[Result]
}

func NewCachedParser(next Parser, name string, c cache.Cache[Result]) *CachedParser {
	return &CachedParser{next: next, name: name, cache: c}
}

func (p *CachedParser) Parse(ctx context.Context, text string) (Result, error) {
	key := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if key == "" {
		return Result{}, ErrEmptyInput
	}
	if res, ok := p.cache.Get(key); ok {
		metrics.ParserRequests.WithLabelValues(p.name, "cache_hit").Inc()
		return res, nil
	}

	res, err := p.next.Parse(ctx, text)
	if err != nil {
		return Result{}, err
	}
	p.cache.Set(key, res)
	return res, nil
}
