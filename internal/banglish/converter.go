// Package banglish converts romanized Bangla ("Banglish") into Bangla script with Gemini.
package banglish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"google.golang.org/genai"
)

// MaxInputRunes caps a single conversion request.
const MaxInputRunes = 2000

var (
	// ErrEmptyText indicates there was nothing to convert.
	ErrEmptyText = errors.New("text is required")
	// ErrTextTooLong indicates the input exceeds MaxInputRunes.
	ErrTextTooLong = errors.New("text is too long")
	// ErrConversionFailed indicates the model call failed or returned an unusable answer.
	ErrConversionFailed = errors.New("conversion failed")
)

// Config wires Gemini access for conversions.
type Config struct {
	APIKey string
	Model  string
}

// generator is the subset of *genai.Models used for conversions.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Converter turns Banglish into Bangla script.
type Converter struct {
	models generator
	model  string
}

// NewConverter creates a Gemini backed converter.
func NewConverter(ctx context.Context, cfg Config) (*Converter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	if apiKey == "" {
		return nil, errors.New("gemini api key missing")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newConverter(client.Models, cfg.Model), nil
}

func newConverter(models generator, model string) *Converter {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Converter{models: models, model: model}
}

// Convert returns the Bangla rendering of text in NFC form.
func (c *Converter) Convert(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxInputRunes {
		return "", fmt.Errorf("%w: limit is %d characters", ErrTextTooLong, MaxInputRunes)
	}

	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(float32(0.2)),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema(),
		})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	return parseResponse(resp.Text())
}

func parseResponse(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out struct {
		ConvertedBangla string `json:"convertedBangla"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return "", fmt.Errorf("%w: decode model output: %v", ErrConversionFailed, err)
	}
	converted := strings.TrimSpace(out.ConvertedBangla)
	if converted == "" {
		return "", fmt.Errorf("%w: empty result", ErrConversionFailed)
	}
	return norm.NFC.String(converted), nil
}

const systemPrompt = `Convert the user's Banglish (Bangla written with Latin letters) into plain Bangla script.
Keep the meaning and punctuation, do not translate into another language and do not add commentary.
Respond with JSON only.`

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"convertedBangla": {Type: genai.TypeString},
		},
		Required: []string{"convertedBangla"},
	}
}
