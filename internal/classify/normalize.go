package classify

import (
	"strings"

	"threadlens/internal/types"
)

// Normalization is the boundary where untrusted classifier strings enter
// the closed type system: case and synonym tolerant, unknown values map
// to the safe defaults (neutral / none), numerics clamp to [0,1].

// NormalizeSentiment maps a free-form label into the closed sentiment
// set. Unknown values are neutral.
func NormalizeSentiment(raw string) types.Sentiment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "pos", "favorable", "favourable":
		return types.SentimentPositive
	case "negative", "neg", "unfavorable", "unfavourable":
		return types.SentimentNegative
	case "neutral", "neu", "mixed", "none":
		return types.SentimentNeutral
	default:
		return types.SentimentNeutral
	}
}

// NormalizeHostilityLevel maps a free-form level into the closed ordinal
// set. Unknown values are none.
func NormalizeHostilityLevel(raw string) types.HostilityLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "no", "not_hostile", "not hostile", "n/a":
		return types.HostilityNone
	case "low", "mild", "minor":
		return types.HostilityLow
	case "medium", "moderate", "med":
		return types.HostilityMedium
	case "high", "severe", "extreme":
		return types.HostilityHigh
	default:
		return types.HostilityNone
	}
}

var labelSynonyms = map[string]types.HostilityLabel{
	"slur":            types.LabelSlur,
	"slurs":           types.LabelSlur,
	"stereotype":      types.LabelStereotype,
	"stereotypes":     types.LabelStereotype,
	"stereotyping":    types.LabelStereotype,
	"dehumanization":  types.LabelDehumanization,
	"dehumanisation":  types.LabelDehumanization,
	"dehumanizing":    types.LabelDehumanization,
	"conspiracy":      types.LabelConspiracy,
	"conspiracies":    types.LabelConspiracy,
	"violence":        types.LabelViolence,
	"violent":         types.LabelViolence,
	"exclusion":       types.LabelExclusion,
	"exclusionary":    types.LabelExclusion,
	"denial":          types.LabelDenial,
	"denialism":       types.LabelDenial,
}

// NormalizeLabels filters a raw label list to the seven-item closed set,
// synonym tolerant and deduplicated. Unknown labels are dropped.
func NormalizeLabels(raw []string) []types.HostilityLabel {
	seen := make(map[types.HostilityLabel]bool)
	var out []types.HostilityLabel
	for _, r := range raw {
		label, ok := labelSynonyms[strings.ToLower(strings.TrimSpace(r))]
		if !ok || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

// Clamp01 bounds a numeric field to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
