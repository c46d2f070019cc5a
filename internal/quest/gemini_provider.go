package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/banglabot/quest-service/internal/region"
)

// GeminiConfig wires Gemini access for generated quests.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Challenges      int
	MaxOutputTokens int
}

// GeminiProvider generates quest content with Gemini.
type GeminiProvider struct {
	client     *genai.Client
	catalog    *region.Catalog
	model      string
	challenges int
	maxTokens  int
}

// NewGeminiProvider returns a ContentProvider backed by Gemini.
func NewGeminiProvider(ctx context.Context, catalog *region.Catalog, cfg GeminiConfig) (*GeminiProvider, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	challenges := cfg.Challenges
	if challenges <= 0 {
		challenges = 3
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
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
	return &GeminiProvider{client: client, catalog: catalog, model: model, challenges: challenges, maxTokens: maxTokens}, nil
}

// Quest asks the model for a quest about the region and validates the result.
func (g *GeminiProvider) Quest(ctx context.Context, regionID string) (Quest, error) {
	r, err := g.catalog.Get(regionID)
	if err != nil {
		return Quest{}, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(questPrompt(r, g.challenges), genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(questSystemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(float32(0.7)),
			MaxOutputTokens:   int32(g.maxTokens),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    questSchema(),
		})
	if err != nil {
		return Quest{}, err
	}
	return parseGenerated(regionID, resp.Text())
}

func parseGenerated(regionID, text string) (Quest, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Quest{}, errors.New("gemini returned empty response")
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var q Quest
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &q); err != nil {
		return Quest{}, fmt.Errorf("decode generated quest: %w", err)
	}
	q.Region = regionID
	if err := q.Validate(); err != nil {
		return Quest{}, err
	}
	return q, nil
}

const questSystemPrompt = `You write short Bangla language-learning quests about the regions of Bangladesh.
Every challenge is multiple choice with exactly one correct option, and correctAnswer must repeat that option verbatim.
Use the challenge types vocabulary (word, context), conversation (dialogue, question) and cultural (title, story, question).
Write all learner-facing text in Bangla. Respond with JSON only.`

func questPrompt(r region.Region, n int) string {
	return fmt.Sprintf("Create a quest with %d challenges for the region %s (%s). Mix the three challenge types.",
		n, r.Name, r.Description)
}

func questSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": str,
			"challenges": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"type":    {Type: genai.TypeString, Enum: []string{string(TypeVocabulary), string(TypeConversation), string(TypeCultural)}},
						"word":    str,
						"context": str,
						"dialogue": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type:       genai.TypeObject,
								Properties: map[string]*genai.Schema{"speaker": str, "text": str},
								Required:   []string{"speaker", "text"},
							},
						},
						"title":         str,
						"story":         str,
						"question":      str,
						"options":       {Type: genai.TypeArray, Items: str},
						"correctAnswer": str,
					},
					Required: []string{"type", "options", "correctAnswer"},
				},
			},
		},
		Required: []string{"title", "challenges"},
	}
}
