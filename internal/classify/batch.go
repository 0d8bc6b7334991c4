package classify

import (
	"encoding/json"
	"fmt"
	"time"
)

// Item is one classification target: the transient comment body plus
// the identity fields the cache key needs.
type Item struct {
	ID       string
	Text     string
	EditedAt *time.Time
}

// EstimateTokens approximates the token cost of a text (length / 4).
func EstimateTokens(text string) int {
	return len(text) / 4
}

// BuildBatches partitions items into batches bounded by both item count
// and summed token estimate. A batch closes before adding an item that
// would breach either bound, unless the batch is empty: an oversized
// single item still gets its own batch.
func BuildBatches(items []Item, maxItems, maxTokens int) [][]Item {
	if len(items) == 0 {
		return nil
	}
	if maxItems < 1 {
		maxItems = 1
	}

	var (
		batches [][]Item
		current []Item
		tokens  int
	)
	for _, item := range items {
		cost := EstimateTokens(item.Text)
		if len(current) > 0 && (len(current)+1 > maxItems || tokens+cost > maxTokens) {
			batches = append(batches, current)
			current = nil
			tokens = 0
		}
		current = append(current, item)
		tokens += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// payloadItem is one element of the user message's item array.
type payloadItem struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Text  string `json:"text"`
}

// UserPayload renders the batch as the user message: a short header plus
// the item array, each item carrying its local index and id.
func UserPayload(batch []Item, taskNote string) (string, error) {
	items := make([]payloadItem, len(batch))
	for i, item := range batch {
		items[i] = payloadItem{Index: i, ID: item.ID, Text: item.Text}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal batch payload: %w", err)
	}
	if taskNote != "" {
		return taskNote + "\n\nItems:\n" + string(data), nil
	}
	return "Items:\n" + string(data), nil
}
