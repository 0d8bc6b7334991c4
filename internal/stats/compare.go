package stats

import (
	"fmt"
	"sort"

	"threadlens/internal/types"
)

// MinSampleSize is the mention count below which a rate comparison is
// flagged as underpowered.
const MinSampleSize = 30

// RateComparison contrasts one community's hostile-mention rate for a
// (framework, target group) pair against a baseline.
type RateComparison struct {
	Framework        types.Framework          `json:"framework"`
	TargetGroup      string                   `json:"target_group"`
	SubjectRate      float64                  `json:"subject_rate"`
	BaselineRate     float64                  `json:"baseline_rate"`
	Delta            float64                  `json:"delta"`
	SubjectInterval  types.ConfidenceInterval `json:"subject_interval"`
	BaselineInterval types.ConfidenceInterval `json:"baseline_interval"`
	Significant      bool                     `json:"significant"`
	Limitations      []string                 `json:"limitations,omitempty"`
}

// Compare builds the rate comparison for a single pair. Significance is
// interval non-overlap alone; small samples are reported as limitations
// alongside it, never folded into it.
func Compare(subject, baseline types.TargetGroupStats) RateComparison {
	cmp := RateComparison{
		Framework:        subject.Framework,
		TargetGroup:      subject.TargetGroup,
		SubjectRate:      subject.Prevalence,
		BaselineRate:     baseline.Prevalence,
		Delta:            subject.Prevalence - baseline.Prevalence,
		SubjectInterval:  subject.Interval,
		BaselineInterval: baseline.Interval,
	}

	if subject.TotalMentions < MinSampleSize {
		cmp.Limitations = append(cmp.Limitations,
			fmt.Sprintf("subject sample has %d mentions, below %d", subject.TotalMentions, MinSampleSize))
	}
	if baseline.TotalMentions < MinSampleSize {
		cmp.Limitations = append(cmp.Limitations,
			fmt.Sprintf("baseline sample has %d mentions, below %d", baseline.TotalMentions, MinSampleSize))
	}

	cmp.Significant = SignificantlyDifferent(subject.Interval, baseline.Interval)
	return cmp
}

// CompareAgainstPeers compares subject pairs against the mean rate of
// the same pair across peer communities. Pairs with no peer data are
// reported with a limitation instead of being dropped.
func CompareAgainstPeers(subject []types.TargetGroupStats, peers [][]types.TargetGroupStats) []RateComparison {
	type pairKey struct {
		framework types.Framework
		group     string
	}

	peerRates := make(map[pairKey][]types.TargetGroupStats)
	for _, peer := range peers {
		for _, stats := range peer {
			k := pairKey{stats.Framework, stats.TargetGroup}
			peerRates[k] = append(peerRates[k], stats)
		}
	}

	comparisons := make([]RateComparison, 0, len(subject))
	for _, stats := range subject {
		k := pairKey{stats.Framework, stats.TargetGroup}
		matches := peerRates[k]
		if len(matches) == 0 {
			comparisons = append(comparisons, RateComparison{
				Framework:       stats.Framework,
				TargetGroup:     stats.TargetGroup,
				SubjectRate:     stats.Prevalence,
				SubjectInterval: stats.Interval,
				Limitations:     []string{"no baseline data for this framework and target group"},
			})
			continue
		}
		comparisons = append(comparisons, Compare(stats, aggregatePeers(stats.Framework, stats.TargetGroup, matches)))
	}

	sort.Slice(comparisons, func(i, j int) bool {
		if comparisons[i].Framework != comparisons[j].Framework {
			return comparisons[i].Framework < comparisons[j].Framework
		}
		return comparisons[i].TargetGroup < comparisons[j].TargetGroup
	})
	return comparisons
}

// sentimentOrder fixes the category iteration order for comparisons.
var sentimentOrder = []types.Sentiment{
	types.SentimentPositive,
	types.SentimentNeutral,
	types.SentimentNegative,
}

// CategoryComparison contrasts one sentiment category's share of a
// community's comments against a baseline.
type CategoryComparison struct {
	Category         types.Sentiment          `json:"category"`
	SubjectRate      float64                  `json:"subject_rate"`
	BaselineRate     float64                  `json:"baseline_rate"`
	Delta            float64                  `json:"delta"`
	SubjectInterval  types.ConfidenceInterval `json:"subject_interval"`
	BaselineInterval types.ConfidenceInterval `json:"baseline_interval"`
	Significant      bool                     `json:"significant"`
}

// SentimentComparison contrasts two sentiment distributions category by
// category, with limitations shared across the categories.
type SentimentComparison struct {
	Categories  []CategoryComparison `json:"categories"`
	Limitations []string             `json:"limitations,omitempty"`
}

// CompareSentiment builds the per-category comparison of a subject
// distribution against a baseline distribution. Significance per
// category is interval non-overlap; small samples become limitations.
func CompareSentiment(subject, baseline types.SentimentStats) SentimentComparison {
	return compareSentimentRates(subject, baseline, categoryRates(baseline))
}

// CompareSentimentAgainstPeers compares a subject distribution against
// the peer communities' sentiment baselines: unweighted mean of the
// peers' category rates, intervals over the pooled counts.
func CompareSentimentAgainstPeers(subject types.SentimentStats, peers []types.SentimentStats) SentimentComparison {
	if len(peers) == 0 {
		return SentimentComparison{Limitations: []string{"no baseline sentiment data"}}
	}
	pooled, rates := aggregateSentimentPeers(peers)
	return compareSentimentRates(subject, pooled, rates)
}

func compareSentimentRates(subject, baseline types.SentimentStats, baselineRates map[types.Sentiment]float64) SentimentComparison {
	subjectRates := categoryRates(subject)

	var out SentimentComparison
	for _, category := range sentimentOrder {
		out.Categories = append(out.Categories, CategoryComparison{
			Category:         category,
			SubjectRate:      subjectRates[category],
			BaselineRate:     baselineRates[category],
			Delta:            subjectRates[category] - baselineRates[category],
			SubjectInterval:  subject.Intervals[category],
			BaselineInterval: baseline.Intervals[category],
			Significant:      SignificantlyDifferent(subject.Intervals[category], baseline.Intervals[category]),
		})
	}

	if subject.Distribution.Total < MinSampleSize {
		out.Limitations = append(out.Limitations,
			fmt.Sprintf("subject sample has %d comments, below %d", subject.Distribution.Total, MinSampleSize))
	}
	if baseline.Distribution.Total < MinSampleSize {
		out.Limitations = append(out.Limitations,
			fmt.Sprintf("baseline sample has %d comments, below %d", baseline.Distribution.Total, MinSampleSize))
	}
	return out
}

// aggregateSentimentPeers pools peer distributions the same way
// aggregatePeers pools pair samples: rates averaged unweighted so one
// large community cannot dominate, intervals over the pooled counts.
func aggregateSentimentPeers(peers []types.SentimentStats) (types.SentimentStats, map[types.Sentiment]float64) {
	pooled := types.SentimentStats{
		Intervals: make(map[types.Sentiment]types.ConfidenceInterval, len(sentimentOrder)),
	}
	rates := make(map[types.Sentiment]float64, len(sentimentOrder))
	for _, p := range peers {
		pooled.Distribution.Positive += p.Distribution.Positive
		pooled.Distribution.Neutral += p.Distribution.Neutral
		pooled.Distribution.Negative += p.Distribution.Negative
		pooled.Distribution.Total += p.Distribution.Total
		for category, rate := range categoryRates(p) {
			rates[category] += rate
		}
	}
	for _, category := range sentimentOrder {
		rates[category] /= float64(len(peers))
		pooled.Intervals[category] = Wilson(categoryCount(pooled.Distribution, category), pooled.Distribution.Total, Z95)
	}
	return pooled, rates
}

func categoryRates(s types.SentimentStats) map[types.Sentiment]float64 {
	rates := make(map[types.Sentiment]float64, len(sentimentOrder))
	if s.Distribution.Total == 0 {
		return rates
	}
	for _, category := range sentimentOrder {
		rates[category] = float64(categoryCount(s.Distribution, category)) / float64(s.Distribution.Total)
	}
	return rates
}

func categoryCount(d types.SentimentDistribution, category types.Sentiment) int {
	switch category {
	case types.SentimentPositive:
		return d.Positive
	case types.SentimentNegative:
		return d.Negative
	default:
		return d.Neutral
	}
}

// aggregatePeers folds peer samples into one synthetic baseline. The
// baseline rate is the unweighted mean of peer rates so a single large
// community cannot dominate, while the interval is taken over the
// pooled counts to reflect the combined sample size.
func aggregatePeers(framework types.Framework, targetGroup string, peers []types.TargetGroupStats) types.TargetGroupStats {
	pooled := types.TargetGroupStats{
		Framework:   framework,
		TargetGroup: targetGroup,
		LevelCounts: make(map[types.HostilityLevel]int),
	}
	var rateSum float64
	for _, p := range peers {
		pooled.TotalMentions += p.TotalMentions
		pooled.HostileCount += p.HostileCount
		rateSum += p.Prevalence
		for level, n := range p.LevelCounts {
			pooled.LevelCounts[level] += n
		}
	}
	pooled.Prevalence = rateSum / float64(len(peers))
	pooled.Interval = Wilson(pooled.HostileCount, pooled.TotalMentions, Z95)
	return pooled
}
