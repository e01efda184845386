package parser

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"khata/internal/metrics"
)

// FallbackParser tries primary under a timeout and answers from fallback when
// it fails. With neither available the text is returned as a General spend.
type FallbackParser struct {
	primary  Parser
	fallback Parser
	timeout  time.Duration
	name     string
}

func NewFallbackParser(name string, primary, fallback Parser, timeout time.Duration) *FallbackParser {
	return &FallbackParser{primary: primary, fallback: fallback, timeout: timeout, name: name}
}

func (p *FallbackParser) Parse(ctx context.Context, text string) (Result, error) {
	if p.primary != nil {
		pctx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		res, err := p.primary.Parse(pctx, text)
		if err == nil {
			metrics.ParserRequests.WithLabelValues(p.name, "ok").Inc()
			return res, nil
		}
		if errors.Is(err, ErrEmptyInput) {
			return Result{}, err
		}
		metrics.ParserRequests.WithLabelValues(p.name, "error").Inc()
		slog.WarnContext(ctx, "Primary expense parser failed, using fallback",
			"component", "parser", "parser", p.name, "error", err)
	}

	if p.fallback != nil {
		res, err := p.fallback.Parse(ctx, text)
		if err == nil {
			metrics.ParserRequests.WithLabelValues(p.name, "fallback").Inc()
			return res, nil
		}
		if errors.Is(err, ErrEmptyInput) {
			return Result{}, err
		}
	}
	return Default(text), nil
}
