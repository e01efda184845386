package parser

import (
	"context"
	"regexp"
	"strings"

	"khata/internal/core"
)

var amountPattern = regexp.MustCompile(`(?i)(?:^|\s)(?:₹|rs\.?|inr)?\s*(\d+(?:[.,]\d{1,3})?)(?:/-)?(?:\s|$)`)

// DefaultKeywords maps lowercase words to categories.
var DefaultKeywords = map[string]string{
	"chai":        "Food",
	"tea":         "Food",
	"coffee":      "Food",
	"lunch":       "Food",
	"dinner":      "Food",
	"breakfast":   "Food",
	"grocery":     "Food",
	"groceries":   "Food",
	"swiggy":      "Food",
	"zomato":      "Food",
	"uber":        "Transport",
	"ola":         "Transport",
	"auto":        "Transport",
	"bus":         "Transport",
	"metro":       "Transport",
	"petrol":      "Transport",
	"fuel":        "Transport",
	"train":       "Transport",
	"amazon":      "Shopping",
	"flipkart":    "Shopping",
	"clothes":     "Shopping",
	"electricity": "Bills",
	"recharge":    "Bills",
	"internet":    "Bills",
	"wifi":        "Bills",
	"phone":       "Bills",
	"doctor":      "Health",
	"medicine":    "Health",
	"pharmacy":    "Health",
	"movie":       "Entertainment",
	"netflix":     "Entertainment",
	"books":       "Education",
	"fees":        "Education",
	"tuition":     "Education",
	"rent":        "Rent",
}

// RuleParser extracts the first amount-looking token and classifies the rest
// by keyword. It never fails on non-empty input.
type RuleParser struct {
	keywords   map[string]string
	categories []string
}

func NewRuleParser(keywords map[string]string, categories []string) *RuleParser {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	if len(categories) == 0 {
		categories = core.KnownCategories
	}
	return &RuleParser{keywords: keywords, categories: categories}
}

func (p *RuleParser) Parse(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyInput
	}

	res := Default(text)
	title := text
	if loc := amountPattern.FindStringSubmatchIndex(text); loc != nil {
		if amt, err := core.ParseAmount(text[loc[2]:loc[3]]); err == nil {
			res.Amount = &amt
			title = strings.Join(strings.Fields(text[:loc[0]]+" "+text[loc[1]:]), " ")
		}
	}
	if title != "" {
		res.Title = title
	}

	for _, word := range strings.Fields(strings.ToLower(title)) {
		word = strings.Trim(word, ".,;:!?()")
		if c, ok := p.keywords[word]; ok {
			res.Category = matchCategory(c, p.categories)
			res.Confidence = 0.6
			break
		}
	}
	if res.Confidence == 0 && res.Amount != nil {
		res.Confidence = 0.3
	}
	return res, nil
}
