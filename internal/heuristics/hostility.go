package heuristics

import (
	"regexp"

	"threadlens/internal/logging"
	"threadlens/internal/types"
)

// GroupPatterns is the compiled pattern set for one target group. Tiers
// are tested in strict priority order: slurs/violence, dehumanization,
// conspiracy, bare mention.
type GroupPatterns struct {
	Group          string
	Mention        []*regexp.Regexp
	Slurs          []*regexp.Regexp
	Violence       []*regexp.Regexp
	Dehumanization []*regexp.Regexp
	Conspiracy     []*regexp.Regexp
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// RunHostility applies the hostility heuristic for one (text, group).
//
// No mention is a terminal confident "none": the item skips Stage B
// entirely for this group. Slur or violence/exclusion patterns, and
// dehumanization without them, are confident "high". Conspiracy language
// defers to Stage B with a suggested "medium" - the lexicon cannot
// resolve its nuance. A bare mention with no pattern hit also defers.
func RunHostility(text string, patterns *GroupPatterns) HostilityOutcome {
	slur := matchAny(patterns.Slurs, text)
	violence := matchAny(patterns.Violence, text)

	// A slur or targeted-violence hit is itself a mention even when no
	// mention-tier pattern fires.
	if !matchAny(patterns.Mention, text) && !slur && !violence {
		return ConfidentHostility(HostilitySuggestion{
			MentionsGroup: false,
			TargetGroup:   patterns.Group,
			Level:         types.HostilityNone,
			Confidence:    0.95,
		})
	}

	base := HostilitySuggestion{
		MentionsGroup: true,
		TargetGroup:   patterns.Group,
	}

	if slur || violence {
		base.Level = types.HostilityHigh
		base.Confidence = 0.9
		if slur {
			base.Labels = append(base.Labels, types.LabelSlur)
		}
		if violence {
			base.Labels = append(base.Labels, types.LabelViolence, types.LabelExclusion)
		}
		logging.HeuristicsDebug("hostility confident high for group %s (slur=%v violence=%v)", patterns.Group, slur, violence)
		return ConfidentHostility(base)
	}

	if matchAny(patterns.Dehumanization, text) {
		base.Level = types.HostilityHigh
		base.Confidence = 0.85
		base.Labels = append(base.Labels, types.LabelDehumanization)
		return ConfidentHostility(base)
	}

	if matchAny(patterns.Conspiracy, text) {
		base.Level = types.HostilityMedium
		base.Confidence = 0.5
		base.Labels = append(base.Labels, types.LabelConspiracy)
		return HostilityDeferred(base)
	}

	// Mention with no pattern hit: Stage B decides.
	base.Level = types.HostilityNone
	base.Confidence = 0.3
	return HostilityDeferred(base)
}
