package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"khata/internal/core"
)

const DefaultModelName = "gemini-2.5-flash"

// generator is the subset of *genai.Models the parser calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiParser asks a Gemini model to split expense text into fields.
type GeminiParser struct {
	models     generator
	model      string
	categories []string
}

// NewGeminiParser creates a genai client for the Gemini API. An empty apiKey
// lets the SDK read GEMINI_API_KEY / GOOGLE_API_KEY itself.
func NewGeminiParser(ctx context.Context, apiKey, model string, categories []string) (*GeminiParser, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiParser(client.Models, model, categories), nil
}

func newGeminiParser(models generator, model string, categories []string) *GeminiParser {
	if model == "" {
		model = DefaultModelName
	}
	if len(categories) == 0 {
		categories = core.KnownCategories
	}
	return &GeminiParser{models: models, model: model, categories: categories}
}

type modelReply struct {
	Title      string          `json:"title"`
	Amount     json.RawMessage `json:"amount"`
	Category   string          `json:"category"`
	Confidence float64         `json:"confidence"`
}

func (p *GeminiParser) Parse(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyInput
	}

	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(p.prompt(text)), nil)
	if err != nil {
		return Result{}, fmt.Errorf("generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return Result{}, fmt.Errorf("%w: empty response from model", ErrUnavailable)
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &reply); err != nil {
		return Result{}, fmt.Errorf("unmarshal model reply: %w", err)
	}

	res := Default(text)
	if t := strings.TrimSpace(reply.Title); t != "" {
		res.Title = t
	}
	if amount := strings.Trim(string(reply.Amount), `"`); amount != "" && amount != "null" {
		if amt, err := core.ParseAmount(amount); err == nil {
			res.Amount = &amt
		}
	}
	res.Category = matchCategory(reply.Category, p.categories)
	res.Confidence = min(max(reply.Confidence, 0), 1)
	return res, nil
}

func (p *GeminiParser) prompt(text string) string {
	return "You split short personal expense notes into fields.\n\n" +
		"Allowed categories: " + strings.Join(p.categories, ", ") + ".\n\n" +
		"Return ONLY one raw JSON object with these fields:\n" +
		"- \"title\": string, the note without the amount\n" +
		"- \"amount\": string with a positive decimal amount, or \"\" if none is given\n" +
		"- \"category\": string, one of the allowed categories\n" +
		"- \"confidence\": number between 0 and 1\n\n" +
		"Do NOT wrap the response in code fences.\n\n" +
		"Note: " + text + "\n"
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
