package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseString(t *testing.T) {
	want := map[Phase]string{
		PhaseFetchingPosts:       "fetching_posts",
		PhaseSamplingPosts:       "sampling_posts",
		PhaseFetchingComments:    "fetching_comments",
		PhaseSamplingComments:    "sampling_comments",
		PhaseSentimentAnalysis:   "sentiment_analysis",
		PhaseTargetGroupAnalysis: "target_group_analysis",
		PhaseAggregating:         "aggregating",
		PhaseCompleted:           "completed",
		PhaseFailed:              "failed",
	}
	for phase, name := range want {
		assert.Equal(t, name, phase.String())
	}

	// Phase is int-based: a rune conversion would garble the name. Log
	// sites must go through String().
	assert.NotEqual(t, string(rune(PhaseFetchingPosts)), PhaseFetchingPosts.String())
	assert.Contains(t, Phase(99).String(), "unknown")
}
