// Package heuristics is Stage A of the classification cascade: lexicon
// and pattern based pre-classification that answers the unambiguous
// majority of items locally, and marks the rest for the remote
// classifier. Lexicons and patterns are fixed, versioned artifacts; no
// learning happens here.
package heuristics

import "threadlens/internal/types"

// Decision is the outcome tag: a confident local answer, or a deferral
// to Stage B carrying a partial hint.
type Decision int

const (
	DecisionConfident Decision = iota
	DecisionNeedsRemote
)

func (d Decision) String() string {
	if d == DecisionConfident {
		return "confident"
	}
	return "needs_remote"
}

// SentimentSuggestion is a Stage A sentiment answer or hint.
type SentimentSuggestion struct {
	Sentiment    types.Sentiment
	Subjectivity float64
	Confidence   float64
}

// SentimentOutcome is the tagged Stage A result for one text. When
// Decision is DecisionNeedsRemote the suggestion is only a hint and must
// not be recorded as a classification.
type SentimentOutcome struct {
	Decision   Decision
	Suggestion SentimentSuggestion
}

// ConfidentSentiment wraps a final local answer.
func ConfidentSentiment(s SentimentSuggestion) SentimentOutcome {
	return SentimentOutcome{Decision: DecisionConfident, Suggestion: s}
}

// SentimentDeferred wraps a partial hint for Stage B.
func SentimentDeferred(hint SentimentSuggestion) SentimentOutcome {
	return SentimentOutcome{Decision: DecisionNeedsRemote, Suggestion: hint}
}

// HostilitySuggestion is a Stage A hostility answer or hint.
type HostilitySuggestion struct {
	MentionsGroup bool
	TargetGroup   string
	Level         types.HostilityLevel
	Labels        []types.HostilityLabel
	Confidence    float64
}

// HostilityOutcome is the tagged Stage A result for one (text, group).
type HostilityOutcome struct {
	Decision   Decision
	Suggestion HostilitySuggestion
}

// ConfidentHostility wraps a final local answer.
func ConfidentHostility(s HostilitySuggestion) HostilityOutcome {
	return HostilityOutcome{Decision: DecisionConfident, Suggestion: s}
}

// HostilityDeferred wraps a partial hint for Stage B.
func HostilityDeferred(hint HostilitySuggestion) HostilityOutcome {
	return HostilityOutcome{Decision: DecisionNeedsRemote, Suggestion: hint}
}
