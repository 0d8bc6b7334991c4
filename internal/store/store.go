// Package store persists completed reports, sampled comment metadata, and
// per-item classifications. Comment bodies are never written: every comment
// passes through WithoutBody before it reaches a backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"threadlens/internal/config"
	"threadlens/internal/types"
)

// ErrNotFound is returned when a requested report does not exist.
var ErrNotFound = errors.New("store: not found")

// ReportSummary is the listing row for a stored report.
type ReportSummary struct {
	RunID      string    `json:"run_id"`
	Subject    string    `json:"subject"`
	Success    bool      `json:"success"`
	TokensUsed int       `json:"tokens_used"`
	CostUSD    float64   `json:"cost_usd"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the persistence port for the pipeline. Upserts are keyed by
// ItemID for sentiment and (ItemID, Framework, TargetGroup) for hostility,
// scoped to a run.
type Store interface {
	SaveReport(ctx context.Context, subject string, result *types.Result) error
	GetReport(ctx context.Context, runID string) (*types.Result, error)
	ListReports(ctx context.Context, limit int) ([]ReportSummary, error)

	SaveComments(ctx context.Context, runID string, comments []types.Comment) error
	GetComments(ctx context.Context, runID string) ([]types.Comment, error)

	UpsertSentiment(ctx context.Context, runID string, cls []types.SentimentClassification) error
	GetSentiment(ctx context.Context, runID string, itemIDs []string) ([]types.SentimentClassification, error)

	UpsertHostility(ctx context.Context, runID string, cls []types.HostilityClassification) error
	GetHostility(ctx context.Context, runID string, itemIDs []string) ([]types.HostilityClassification, error)

	Close() error
}

// New builds a Store from config. The sqlite backend requires a path.
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("store: sqlite backend requires a path")
		}
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// stripBodies enforces the privacy invariant on the way in.
func stripBodies(comments []types.Comment) []types.Comment {
	out := make([]types.Comment, len(comments))
	for i, c := range comments {
		out[i] = c.WithoutBody()
	}
	return out
}
