// Package classify is Stage B of the cascade: it groups unresolved items
// into bounded batches, invokes the remote classifier, validates and
// normalizes its structured output into the closed enum vocabulary, and
// writes the cache. Prompts are fixed, versioned artifacts; the version
// string participates in cache-key identity.
package classify

import (
	"fmt"

	"threadlens/internal/types"
)

// Prompt versions. Bumping one invalidates every cached result produced
// under it, so changes here are deliberate.
const (
	SentimentPromptVersion = "sentiment-v2"
	HostilityPromptVersion = "hostility-v3"
)

const sentimentSystemPrompt = `You are a sentiment classifier for social media comments.
For each item in the input array, classify its overall sentiment.

Respond with a JSON array only. One element per input item:
  {"id": "<item id>", "sentiment": "positive"|"neutral"|"negative",
   "subjectivity": <0..1>, "confidence": <0..1>}

subjectivity: 0 is purely factual, 1 is purely opinion.
confidence: your certainty in the sentiment label.
Classify every item. Do not add fields, commentary, or markdown.`

// hostilitySystemPrompts holds the framework-specific Stage B prompts.
// Each framework applies its own definition when deciding whether
// group-directed content is hostile.
var hostilitySystemPrompts = map[types.Framework]string{
	types.FrameworkIHRA: hostilityPromptFor("the IHRA working definition"),
	types.FrameworkJDA:  hostilityPromptFor("the Jerusalem Declaration (JDA)"),
	types.FrameworkNexus: hostilityPromptFor("the Nexus Document"),
}

func hostilityPromptFor(framework string) string {
	return fmt.Sprintf(`You are a content analyst applying %s to social media comments.
For each item, decide whether it mentions the named target group and, if so,
rate the hostility directed at that group under this framework.

Respond with a JSON array only. One element per input item:
  {"id": "<item id>", "mentions_group": true|false,
   "hostility_level": "none"|"low"|"medium"|"high",
   "labels": [subset of "slur","stereotype","dehumanization","conspiracy","violence","exclusion","denial"],
   "confidence": <0..1>, "rationale": "<one sentence>"}

Criticism of a government or institution is not by itself hostility toward
the group. Classify every item. Do not add fields, commentary, or markdown.`, framework)
}

// SystemPrompt returns the versioned prompt for a task. Hostility
// requires a valid framework.
func SystemPrompt(task types.TaskType, framework types.Framework) (prompt, version string, err error) {
	switch task {
	case types.TaskSentiment:
		return sentimentSystemPrompt, SentimentPromptVersion, nil
	case types.TaskHostility:
		p, ok := hostilitySystemPrompts[framework]
		if !ok {
			return "", "", fmt.Errorf("no hostility prompt for framework %q", framework)
		}
		return p, HostilityPromptVersion, nil
	default:
		return "", "", fmt.Errorf("unknown task type %q", task)
	}
}
