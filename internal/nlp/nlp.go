// Package nlp supplies auxiliary entity, keyword and sentiment signals for
// the classifier's LLM context and for diagnostics. Every function is total:
// bad input yields the zero-value shape, never an error.
package nlp

import (
	"regexp"
	"sort"
	"strings"
)

// Sentiment is a coarse polarity reading over a message body.
type Sentiment struct {
	Polarity   float64 `json:"polarity"` // in [-1, 1]
	IsPositive bool    `json:"is_positive"`
	IsNegative bool    `json:"is_negative"`
}

// Polarity thresholds: anything inside (-0.1, 0.1] on either side is neutral.
const (
	positiveThreshold = 0.1
	negativeThreshold = -0.1
)

var entityPatterns = map[string]*regexp.Regexp{
	"email": regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	"url":   regexp.MustCompile(`https?://[^\s<>"]+`),
	"phone": regexp.MustCompile(`\+?\d[\d\-\s().]{7,}\d`),
	"money": regexp.MustCompile(`[$€£]\s?\d[\d,.]*[kK]?`),
	"date":  regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:,?\s+\d{4})?|\b\d{4}-\d{2}-\d{2}\b`),
}

var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "happy": {}, "interested": {},
	"excited": {}, "pleased": {}, "glad": {}, "congratulations": {}, "thrilled": {},
	"wonderful": {}, "impressive": {}, "love": {}, "perfect": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "poor": {}, "unhappy": {}, "disappointed": {}, "unfortunately": {},
	"regret": {}, "sorry": {}, "decline": {}, "rejected": {}, "concern": {},
	"problem": {}, "issue": {},
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "i": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "we": {},
	"were": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

var wordRe = regexp.MustCompile(`[a-zA-Z]+`)

// Analyzer produces lightweight text signals without external dependencies.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// ExtractEntities returns surface strings grouped by entity type. Types with
// no matches are omitted; empty input returns an empty map.
func (a *Analyzer) ExtractEntities(text string) map[string][]string {
	out := make(map[string][]string)
	if text == "" {
		return out
	}
	for kind, re := range entityPatterns {
		matches := re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		seen := make(map[string]struct{}, len(matches))
		for _, m := range matches {
			m = strings.TrimSpace(m)
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out[kind] = append(out[kind], m)
		}
	}
	return out
}

// Keywords returns up to n distinct non-stopword tokens in frequency order.
func (a *Analyzer) Keywords(text string, n int) []string {
	if text == "" || n <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}

// AnalyzeSentiment scores the text against a small lexicon. Polarity is the
// normalized balance of positive and negative hits; a text with no hits is
// neutral with polarity 0.
func (a *Analyzer) AnalyzeSentiment(text string) Sentiment {
	if text == "" {
		return Sentiment{}
	}

	var pos, neg int
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return Sentiment{}
	}

	polarity := float64(pos-neg) / float64(total)
	return Sentiment{
		Polarity:   polarity,
		IsPositive: polarity > positiveThreshold,
		IsNegative: polarity < negativeThreshold,
	}
}
