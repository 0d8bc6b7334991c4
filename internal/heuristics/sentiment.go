package heuristics

import (
	"regexp"
	"strings"

	"threadlens/internal/logging"
	"threadlens/internal/types"
)

// Fixed sentiment lexicons. These are versioned artifacts: changing them
// changes Stage A behavior for every run, so additions go through the
// pattern-pack mechanism rather than ad hoc edits.
var positiveLexicon = wordSet(
	"good", "great", "excellent", "amazing", "awesome", "fantastic",
	"wonderful", "love", "loved", "best", "brilliant", "superb",
	"helpful", "thanks", "thank", "appreciate", "appreciated", "glad",
	"happy", "enjoy", "enjoyed", "perfect", "beautiful", "nice",
	"impressive", "solid", "recommend", "recommended", "win", "winning",
	"favorite", "fun", "cool", "kind", "friendly", "respect",
)

var negativeLexicon = wordSet(
	"bad", "terrible", "awful", "horrible", "worst", "hate", "hated",
	"disgusting", "stupid", "dumb", "idiot", "trash", "garbage",
	"useless", "pathetic", "annoying", "angry", "furious", "disappointed",
	"disappointing", "broken", "scam", "liar", "lies", "wrong",
	"ridiculous", "nonsense", "ugly", "gross", "cringe", "toxic",
	"insufferable", "disaster", "failure", "fail", "ruined",
)

// Single tokens that are confidently neutral on their own.
var neutralTokens = wordSet(
	"ok", "okay", "yes", "no", "yeah", "nah", "yep", "nope", "sure",
	"thanks", "this", "that", "same", "lol", "lmao", "f", "rip",
)

var (
	tokenSplitRe   = regexp.MustCompile(`[^a-z0-9'-]+`)
	urlRe          = regexp.MustCompile(`(?i)\bhttps?://\S+`)
	mentionRe      = regexp.MustCompile(`(?i)(^|\s)/?(r|u)/[a-z0-9_-]+`)
	pureNumeralRe  = regexp.MustCompile(`^[\d\s.,%+-]+$`)
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Tokenize lowercases and strips everything outside [a-z0-9'-].
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	parts := tokenSplitRe.Split(lower, -1)
	var tokens []string
	for _, p := range parts {
		if p = strings.Trim(p, "'-"); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// isNeutralPattern recognizes texts that carry no sentiment signal worth
// a remote call: single common tokens, bare links, subreddit/user
// mentions, pure numerals, or fewer than three tokens.
func isNeutralPattern(text string, tokens []string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if len(tokens) == 1 && neutralTokens[tokens[0]] {
		return true
	}
	if urlRe.MatchString(trimmed) && len(tokens) < 6 {
		return true
	}
	if mentionRe.MatchString(trimmed) && len(tokens) < 4 {
		return true
	}
	if pureNumeralRe.MatchString(trimmed) {
		return true
	}
	if len(tokens) < 3 {
		return true
	}
	return false
}

// RunSentiment applies the sentiment heuristic to one text. A confident
// positive/negative requires at least two lexicon matches and a skewed
// positive-to-total ratio (>0.7 positive, <0.3 negative); confidence is
// min(0.8, 0.5 + 0.1*matches). Neutral-pattern texts are confidently
// neutral. Everything else defers to Stage B.
func RunSentiment(text string) SentimentOutcome {
	tokens := Tokenize(text)

	if isNeutralPattern(text, tokens) {
		return ConfidentSentiment(SentimentSuggestion{
			Sentiment:    types.SentimentNeutral,
			Subjectivity: 0.1,
			Confidence:   0.9,
		})
	}

	var pos, neg int
	for _, tok := range tokens {
		if positiveLexicon[tok] {
			pos++
		}
		if negativeLexicon[tok] {
			neg++
		}
	}
	total := pos + neg

	if total >= 2 {
		ratio := float64(pos) / float64(total)
		confidence := 0.5 + 0.1*float64(total)
		if confidence > 0.8 {
			confidence = 0.8
		}
		subjectivity := 0.3 + 0.1*float64(total)
		if subjectivity > 1.0 {
			subjectivity = 1.0
		}

		if ratio > 0.7 {
			logging.HeuristicsDebug("sentiment confident positive (pos=%d neg=%d)", pos, neg)
			return ConfidentSentiment(SentimentSuggestion{
				Sentiment:    types.SentimentPositive,
				Subjectivity: subjectivity,
				Confidence:   confidence,
			})
		}
		if ratio < 0.3 {
			logging.HeuristicsDebug("sentiment confident negative (pos=%d neg=%d)", pos, neg)
			return ConfidentSentiment(SentimentSuggestion{
				Sentiment:    types.SentimentNegative,
				Subjectivity: subjectivity,
				Confidence:   confidence,
			})
		}
	}

	// Mixed or too-weak signal: let Stage B decide, keep counts as hint.
	hint := SentimentSuggestion{Sentiment: types.SentimentNeutral, Subjectivity: 0.5, Confidence: 0.3}
	if pos > neg {
		hint.Sentiment = types.SentimentPositive
	} else if neg > pos {
		hint.Sentiment = types.SentimentNegative
	}
	return SentimentDeferred(hint)
}
