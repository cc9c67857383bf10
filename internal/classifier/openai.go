package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/nlp"
)

const defaultModel = openai.GPT4oMini

// openAIScorer implements LabelScorer with a chat completion forced into a
// JSON object of label -> score.
type openAIScorer struct {
	client   *openai.Client
	model    string
	analyzer *nlp.Analyzer
}

func newOpenAIScorer(cfg config.LLMConfig, analyzer *nlp.Analyzer) *openAIScorer {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &openAIScorer{
		client:   openai.NewClient(cfg.APIKey),
		model:    model,
		analyzer: analyzer,
	}
}

func (s *openAIScorer) ScoreLabels(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a text categorizer for messages received during a job search.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: s.buildPrompt(text, labels),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &scores); err != nil {
		return nil, fmt.Errorf("parse label scores: %w", err)
	}
	return scores, nil
}

// buildPrompt includes entity and keyword signals so the model sees the same
// auxiliary context the diagnostics expose.
func (s *openAIScorer) buildPrompt(text string, labels []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Score how well the message below fits each of these categories: %s.\n",
		strings.Join(labels, ", "))
	b.WriteString("Respond with a JSON object mapping every category name to a score between 0 and 1.\n")

	if s.analyzer != nil {
		if kws := s.analyzer.Keywords(text, 10); len(kws) > 0 {
			fmt.Fprintf(&b, "\nKeywords: %s\n", strings.Join(kws, ", "))
		}
		if ents := s.analyzer.ExtractEntities(text); len(ents) > 0 {
			for kind, vals := range ents {
				fmt.Fprintf(&b, "Entities (%s): %s\n", kind, strings.Join(vals, ", "))
			}
		}
	}

	fmt.Fprintf(&b, "\nMessage:\n%s\n", text)
	return b.String()
}
