package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"threadlens/internal/types"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("Hello, World!"))
	assert.Equal(t, []string{"don't", "stop"}, Tokenize("Don't stop"))
	assert.Nil(t, Tokenize("!!! ..."))
}

func TestRunSentiment(t *testing.T) {
	t.Run("confident neutral patterns", func(t *testing.T) {
		for _, text := range []string{
			"",
			"   ",
			"ok",
			"lol",
			"https://example.com/article",
			"r/golang",
			"42",
			"+1",
			"nice one", // two tokens
		} {
			out := RunSentiment(text)
			assert.Equal(t, DecisionConfident, out.Decision, "text %q", text)
			assert.Equal(t, types.SentimentNeutral, out.Suggestion.Sentiment, "text %q", text)
			assert.InDelta(t, 0.9, out.Suggestion.Confidence, 1e-9)
		}
	})

	t.Run("strong positive is confident", func(t *testing.T) {
		out := RunSentiment("this is a great and helpful write up, thanks for sharing")
		assert.Equal(t, DecisionConfident, out.Decision)
		assert.Equal(t, types.SentimentPositive, out.Suggestion.Sentiment)
		assert.GreaterOrEqual(t, out.Suggestion.Confidence, 0.5)
		assert.LessOrEqual(t, out.Suggestion.Confidence, 0.8)
	})

	t.Run("strong negative is confident", func(t *testing.T) {
		out := RunSentiment("what a terrible awful mess, the worst release yet")
		assert.Equal(t, DecisionConfident, out.Decision)
		assert.Equal(t, types.SentimentNegative, out.Suggestion.Sentiment)
	})

	t.Run("ambiguous text with no lexicon hits defers", func(t *testing.T) {
		out := RunSentiment("the committee reviewed the proposal on tuesday afternoon")
		assert.Equal(t, DecisionNeedsRemote, out.Decision)
	})

	t.Run("single match defers", func(t *testing.T) {
		out := RunSentiment("the new api design seems good for this use case overall")
		assert.Equal(t, DecisionNeedsRemote, out.Decision)
	})

	t.Run("mixed signals defer", func(t *testing.T) {
		out := RunSentiment("the good parts are great but the bad parts are terrible honestly")
		assert.Equal(t, DecisionNeedsRemote, out.Decision)
	})

	t.Run("confidence capped at 0.8", func(t *testing.T) {
		out := RunSentiment("great great great amazing awesome fantastic wonderful brilliant superb excellent work here")
		assert.Equal(t, DecisionConfident, out.Decision)
		assert.InDelta(t, 0.8, out.Suggestion.Confidence, 1e-9)
	})
}
