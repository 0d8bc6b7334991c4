// Package cache is the read-through, write-after classification cache.
// It guarantees at-most-once remote invocation per unique classification
// request: the key covers everything that changes the answer (item
// identity and edit time, task, framework, target group, model, prompt
// version). TTL-expired entries read as absent.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"threadlens/internal/types"
)

// Key identifies one unique classification request. EditedAt
// participates so an edited comment is a new target. TargetGroup is
// included alongside the framework: hostility verdicts are unique per
// (item, framework, group), and a key without the group would collide
// across groups in multi-group runs.
type Key struct {
	ItemID        string
	EditedAt      *time.Time
	TaskType      types.TaskType
	Framework     types.Framework // empty for sentiment
	TargetGroup   string          // empty for sentiment
	Model         string
	PromptVersion string
}

// String renders the canonical form used as the storage key.
func (k Key) String() string {
	edited := "never"
	if k.EditedAt != nil {
		edited = fmt.Sprintf("%d", k.EditedAt.Unix())
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		k.ItemID, edited, k.TaskType, k.Framework, k.TargetGroup, k.Model, k.PromptVersion)
}

// Entry is one cached classification result. Result holds the
// marshalled classification record; TokensUsed is what the original
// remote call cost, kept for audit.
type Entry struct {
	Key        Key
	Result     json.RawMessage
	TokensUsed int
	ExpiresAt  *time.Time
}

// Expired reports whether the entry is past its TTL at now.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Cache is the read-through port. Get returns (nil, false, nil) for
// missing or expired keys. Set is an upsert; concurrent writes to the
// same key carry equivalent values (they stem from the same
// deterministic classification), so last write wins.
type Cache interface {
	Get(ctx context.Context, key Key) (*Entry, bool, error)
	Set(ctx context.Context, entry Entry) error
	Close() error
}
