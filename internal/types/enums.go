package types

import "fmt"

// =============================================================================
// CLOSED CLASSIFICATION VOCABULARY
// =============================================================================
//
// Every string the remote classifier or the heuristic layer can emit is
// funneled into these enums at the classify boundary. Nothing downstream
// (aggregation, storage) ever sees a free-form label.

// Sentiment is the three-way sentiment label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the closed sentiment values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// HostilityLevel is the ordinal severity of group-directed hostility.
// Ordering: none < low < medium < high.
type HostilityLevel string

const (
	HostilityNone   HostilityLevel = "none"
	HostilityLow    HostilityLevel = "low"
	HostilityMedium HostilityLevel = "medium"
	HostilityHigh   HostilityLevel = "high"
)

// Valid reports whether h is one of the closed hostility levels.
func (h HostilityLevel) Valid() bool {
	switch h {
	case HostilityNone, HostilityLow, HostilityMedium, HostilityHigh:
		return true
	}
	return false
}

// Rank returns the ordinal position of the level (none=0 .. high=3).
// Unknown levels rank as none.
func (h HostilityLevel) Rank() int {
	switch h {
	case HostilityLow:
		return 1
	case HostilityMedium:
		return 2
	case HostilityHigh:
		return 3
	default:
		return 0
	}
}

// Framework is a definitional standard for interpreting hostility toward a
// target group.
type Framework string

const (
	FrameworkIHRA  Framework = "ihra"
	FrameworkJDA   Framework = "jda"
	FrameworkNexus Framework = "nexus"
)

// Valid reports whether f is one of the supported frameworks.
func (f Framework) Valid() bool {
	switch f {
	case FrameworkIHRA, FrameworkJDA, FrameworkNexus:
		return true
	}
	return false
}

// AllFrameworks lists the supported frameworks in fixed order.
func AllFrameworks() []Framework {
	return []Framework{FrameworkIHRA, FrameworkJDA, FrameworkNexus}
}

// TaskType identifies a classification task for budgeting and cache keys.
type TaskType string

const (
	TaskSentiment TaskType = "sentiment"
	TaskHostility TaskType = "hostility"
)

// SortStrategy is an upstream listing sort used during sampling.
type SortStrategy string

const (
	SortTop           SortStrategy = "top"
	SortNew           SortStrategy = "new"
	SortControversial SortStrategy = "controversial"
)

// Valid reports whether s is a recognized sort strategy.
func (s SortStrategy) Valid() bool {
	switch s {
	case SortTop, SortNew, SortControversial:
		return true
	}
	return false
}

// HostilityLabel is one of the seven closed content labels a hostility
// classification may carry.
type HostilityLabel string

const (
	LabelSlur           HostilityLabel = "slur"
	LabelStereotype     HostilityLabel = "stereotype"
	LabelDehumanization HostilityLabel = "dehumanization"
	LabelConspiracy     HostilityLabel = "conspiracy"
	LabelViolence       HostilityLabel = "violence"
	LabelExclusion      HostilityLabel = "exclusion"
	LabelDenial         HostilityLabel = "denial"
)

// AllHostilityLabels lists the closed label set in fixed order.
func AllHostilityLabels() []HostilityLabel {
	return []HostilityLabel{
		LabelSlur, LabelStereotype, LabelDehumanization,
		LabelConspiracy, LabelViolence, LabelExclusion, LabelDenial,
	}
}

// Valid reports whether l is in the closed label set.
func (l HostilityLabel) Valid() bool {
	for _, known := range AllHostilityLabels() {
		if l == known {
			return true
		}
	}
	return false
}

// Phase is a pipeline execution phase. Phases advance strictly in the order
// declared below; Failed may be entered from any phase.
type Phase int

const (
	PhaseFetchingPosts Phase = iota
	PhaseSamplingPosts
	PhaseFetchingComments
	PhaseSamplingComments
	PhaseSentimentAnalysis
	PhaseTargetGroupAnalysis
	PhaseAggregating
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseFetchingPosts:
		return "fetching_posts"
	case PhaseSamplingPosts:
		return "sampling_posts"
	case PhaseFetchingComments:
		return "fetching_comments"
	case PhaseSamplingComments:
		return "sampling_comments"
	case PhaseSentimentAnalysis:
		return "sentiment_analysis"
	case PhaseTargetGroupAnalysis:
		return "target_group_analysis"
	case PhaseAggregating:
		return "aggregating"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}
