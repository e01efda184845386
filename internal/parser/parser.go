// Package parser turns free-text expense input ("chai 40", "uber 230.50 to
// office") into a title, an amount and a category suggestion.
package parser

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"khata/internal/core"
)

var (
	ErrEmptyInput  = errors.New("empty expense text")
	ErrUnavailable = errors.New("expense parser unavailable")
)

// Result is a parse suggestion. Amount is nil when no amount was found.
// Confidence is in [0, 1].
type Result struct {
	Title      string           `json:"title"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Category   string           `json:"category"`
	Confidence float64          `json:"confidence"`
}

type Parser interface {
	Parse(ctx context.Context, text string) (Result, error)
}

// Default is the result returned when no parser can classify the text.
func Default(text string) Result {
	return Result{Title: strings.TrimSpace(text), Category: core.DefaultCategory}
}

// matchCategory maps a model or keyword label onto the known set, falling
// back to the default category.
func matchCategory(label string, known []string) string {
	label = strings.TrimSpace(label)
	for _, k := range known {
		if strings.EqualFold(k, label) {
			return k
		}
	}
	return core.DefaultCategory
}
