// Package classifier assigns an intent label to message text using a
// two-stage design: an optional LLM-backed categorical scorer, backed by a
// deterministic regex scorer that is always available. Classification is a
// total function: every input resolves to exactly one label.
package classifier

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/adilet/commhub/internal/config"
	"github.com/adilet/commhub/internal/message"
	"github.com/adilet/commhub/internal/nlp"
)

// LabelScorer is the LLM stage contract: score each candidate label for the
// given text. Any error triggers a silent fall-through to the rule stage.
type LabelScorer interface {
	ScoreLabels(ctx context.Context, text string, labels []string) (map[string]float64, error)
}

// ClassificationResult pairs the winning intent with the stage's confidence.
// Only the intent is persisted onto the message.
type ClassificationResult struct {
	Intent     message.Intent
	Confidence float64
}

// ruleLabels is the defined iteration order for scoring and tie-breaking.
var ruleLabels = []message.Intent{
	message.IntentInterviewRequest,
	message.IntentFollowUp,
	message.IntentJobOffer,
	message.IntentNetworking,
}

// llmLabels are the substantive categories offered to the LLM stage.
var llmLabels = []string{
	string(message.IntentInterviewRequest),
	string(message.IntentFollowUp),
	string(message.IntentJobOffer),
	string(message.IntentNetworking),
	string(message.IntentOther),
}

// Per-label phrase patterns. Each pattern contributes at most one point no
// matter how often it matches.
var rulePatterns = map[message.Intent][]*regexp.Regexp{
	message.IntentInterviewRequest: compileAll(
		`interview`,
		`meet(ing)?(\s|to\s|for\s)`,
		`schedule(\sa)?(\s|call|chat|meeting)`,
		`available(\s|for|to)`,
		`speak(\s|with|to)`,
		`discuss(\s|your|the)`,
		`call(\s|with|to)`,
		`time(\s|for|to)`,
		`talk(\s|about|with)`,
	),
	message.IntentFollowUp: compileAll(
		`follow(ing)?(\s|-)?up`,
		`checking(\s|in)`,
		`status`,
		`update`,
		`progress`,
		`hear(ing)?(\s|back|from)`,
	),
	message.IntentJobOffer: compileAll(
		`offer`,
		`position`,
		`role`,
		`salary`,
		`compensation`,
		`package`,
		`accept`,
		`join(\s|our|the)`,
		`welcome(\s|to|aboard)`,
	),
	message.IntentNetworking: compileAll(
		`connect`,
		`network`,
		`introduction`,
		`contact`,
		`recommendation`,
		`refer`,
		`community`,
	),
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Classifier determines message intent.
type Classifier struct {
	scorer   LabelScorer // nil when the LLM stage is disabled or unconfigured
	analyzer *nlp.Analyzer
}

// New creates a classifier from config. When the LLM stage is enabled and an
// API key is present, an OpenAI scorer is attached; otherwise the classifier
// runs rule-only. A missing key is a configuration degradation, not an error.
func New(cfg config.LLMConfig, analyzer *nlp.Analyzer) *Classifier {
	c := &Classifier{analyzer: analyzer}
	if cfg.Enabled {
		if cfg.APIKey == "" {
			slog.Warn("LLM classification enabled but no API key configured, using rules only")
		} else {
			c.scorer = newOpenAIScorer(cfg, analyzer)
			slog.Info("LLM classification stage enabled", "model", cfg.Model)
		}
	}
	return c
}

// NewWithScorer creates a classifier with an explicit LLM backend.
func NewWithScorer(scorer LabelScorer, analyzer *nlp.Analyzer) *Classifier {
	return &Classifier{scorer: scorer, analyzer: analyzer}
}

// Classify returns exactly one of the six intent labels for any input text.
func (c *Classifier) Classify(ctx context.Context, text string) message.Intent {
	return c.ClassifyWithConfidence(ctx, text).Intent
}

// ClassifyWithConfidence is Classify with the winning stage's confidence
// attached. Empty input resolves to unknown without invoking either stage,
// and any stage failure resolves to unknown rather than propagating.
func (c *Classifier) ClassifyWithConfidence(ctx context.Context, text string) (result ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("classifier panic recovered", "panic", r)
			result = ClassificationResult{Intent: message.IntentUnknown}
		}
	}()

	// Only the empty string short-circuits. Whitespace-only input is real
	// input as far as the stages are concerned; it falls out of the rule
	// stage as "other" like any other text with no pattern matches.
	if text == "" {
		return ClassificationResult{Intent: message.IntentUnknown}
	}

	if c.scorer != nil {
		if res, err := c.classifyWithLLM(ctx, text); err == nil {
			return res
		} else {
			// Fall through silently; classification never blocks on the LLM.
			slog.Warn("LLM classification failed, falling back to rules", "error", err)
		}
	}

	return c.classifyWithRules(text)
}

func (c *Classifier) classifyWithLLM(ctx context.Context, text string) (ClassificationResult, error) {
	scores, err := c.scorer.ScoreLabels(ctx, text, llmLabels)
	if err != nil {
		return ClassificationResult{}, err
	}

	var best string
	var bestScore float64
	for _, label := range llmLabels {
		if score, ok := scores[label]; ok && (best == "" || score > bestScore) {
			best, bestScore = label, score
		}
	}
	if best == "" {
		return c.classifyWithRules(text), nil
	}

	slog.Debug("LLM classified message", "intent", best, "score", bestScore)
	return ClassificationResult{Intent: message.Intent(best), Confidence: bestScore}, nil
}

// classifyWithRules scores each label by the number of its patterns that
// match anywhere in the text. Zero matches overall means "other". Ties
// prefer interview_request when it is among the tied labels, otherwise the
// first tied label in the defined order wins; this is a deliberately simple
// deterministic tie-break, not a quality heuristic.
func (c *Classifier) classifyWithRules(text string) ClassificationResult {
	lower := strings.ToLower(text)

	scores := make(map[message.Intent]int, len(ruleLabels))
	maxScore := 0
	for _, label := range ruleLabels {
		for _, re := range rulePatterns[label] {
			if re.MatchString(lower) {
				scores[label]++
			}
		}
		if scores[label] > maxScore {
			maxScore = scores[label]
		}
	}

	if maxScore == 0 {
		return ClassificationResult{Intent: message.IntentOther}
	}

	var tied []message.Intent
	for _, label := range ruleLabels {
		if scores[label] == maxScore {
			tied = append(tied, label)
		}
	}

	winner := tied[0]
	for _, label := range tied {
		if label == message.IntentInterviewRequest {
			winner = label
			break
		}
	}

	confidence := float64(maxScore) / float64(len(rulePatterns[winner]))
	return ClassificationResult{Intent: winner, Confidence: confidence}
}
