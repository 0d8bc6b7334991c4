package stats

import (
	"threadlens/internal/types"
)

// BuildSentimentStats derives the sentiment aggregate for one comment
// population. Means are unweighted arithmetic means; intervals are
// 95% Wilson per category.
func BuildSentimentStats(classifications []types.SentimentClassification) types.SentimentStats {
	stats := types.SentimentStats{
		Intervals: make(map[types.Sentiment]types.ConfidenceInterval),
	}

	var subjSum, confSum float64
	for _, cls := range classifications {
		switch cls.Sentiment {
		case types.SentimentPositive:
			stats.Distribution.Positive++
		case types.SentimentNegative:
			stats.Distribution.Negative++
		default:
			stats.Distribution.Neutral++
		}
		subjSum += cls.Subjectivity
		confSum += cls.Confidence
	}
	stats.Distribution.Total = len(classifications)

	if stats.Distribution.Total > 0 {
		n := float64(stats.Distribution.Total)
		stats.MeanSubjectivity = subjSum / n
		stats.MeanConfidence = confSum / n
	}

	total := stats.Distribution.Total
	stats.Intervals[types.SentimentPositive] = Wilson(stats.Distribution.Positive, total, Z95)
	stats.Intervals[types.SentimentNeutral] = Wilson(stats.Distribution.Neutral, total, Z95)
	stats.Intervals[types.SentimentNegative] = Wilson(stats.Distribution.Negative, total, Z95)

	return stats
}

// BuildTargetGroupStats derives the hostility aggregate for one
// (framework, target group) pair. Prevalence is hostile mentions over
// total mentions, with its Wilson interval over that same ratio.
func BuildTargetGroupStats(framework types.Framework, targetGroup string, classifications []types.HostilityClassification) types.TargetGroupStats {
	stats := types.TargetGroupStats{
		Framework:   framework,
		TargetGroup: targetGroup,
		LevelCounts: make(map[types.HostilityLevel]int),
	}

	var confSum float64
	var confN int
	for _, cls := range classifications {
		if cls.Framework != framework || cls.TargetGroup != targetGroup {
			continue
		}
		confSum += cls.Confidence
		confN++
		if !cls.MentionsGroup {
			continue
		}
		stats.TotalMentions++
		stats.LevelCounts[cls.HostilityLevel]++
		if cls.HostilityLevel != types.HostilityNone {
			stats.HostileCount++
		}
	}

	if stats.TotalMentions > 0 {
		stats.Prevalence = float64(stats.HostileCount) / float64(stats.TotalMentions)
	}
	stats.Interval = Wilson(stats.HostileCount, stats.TotalMentions, Z95)
	if confN > 0 {
		stats.MeanConfidence = confSum / float64(confN)
	}

	return stats
}
