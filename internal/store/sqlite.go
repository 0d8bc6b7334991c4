package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"threadlens/internal/logging"
	"threadlens/internal/types"
)

// SQLiteStore is the durable backend. Reports are stored as JSON blobs;
// comments and classifications get their own tables so they can be queried
// and upserted independently of the report document.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema is current.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	logging.Store("Opening report store at %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to set sqlite foreign_keys=ON: %v", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.StoreDebug("Report store schema ready")
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			run_id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			success INTEGER NOT NULL,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			result BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sampled_comments (
			run_id TEXT NOT NULL,
			comment_id TEXT NOT NULL,
			post_id TEXT NOT NULL,
			parent_id TEXT,
			permalink TEXT,
			author_id TEXT,
			created_at DATETIME,
			edited_at DATETIME,
			score INTEGER NOT NULL DEFAULT 0,
			depth INTEGER NOT NULL DEFAULT 0,
			is_moderator INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, comment_id)
		)`,
		`CREATE TABLE IF NOT EXISTS sentiment_classifications (
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			sentiment TEXT NOT NULL,
			subjectivity REAL NOT NULL,
			confidence REAL NOT NULL,
			from_cache INTEGER NOT NULL DEFAULT 0,
			model_used TEXT,
			prompt_version TEXT,
			PRIMARY KEY (run_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS hostility_classifications (
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			framework TEXT NOT NULL,
			target_group TEXT NOT NULL,
			mentions_group INTEGER NOT NULL DEFAULT 0,
			hostility_level TEXT NOT NULL,
			labels TEXT NOT NULL DEFAULT '[]',
			confidence REAL NOT NULL,
			rationale TEXT,
			from_cache INTEGER NOT NULL DEFAULT 0,
			model_used TEXT,
			prompt_version TEXT,
			PRIMARY KEY (run_id, item_id, framework, target_group)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, subject string, result *types.Result) error {
	stored := *result
	stored.SampledComments = stripBodies(stored.SampledComments)
	blob, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (run_id, subject, success, tokens_used, cost_usd, result)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			subject = excluded.subject,
			success = excluded.success,
			tokens_used = excluded.tokens_used,
			cost_usd = excluded.cost_usd,
			result = excluded.result`,
		stored.RunID, subject, boolToInt(stored.Success),
		stored.TotalTokensUsed, stored.EstimatedCostUSD, blob)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", stored.RunID, err)
	}
	logging.Store("Saved report %s (subject=%s, success=%v)", stored.RunID, subject, stored.Success)
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, runID string) (*types.Result, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM reports WHERE run_id = ?`, runID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", runID, err)
	}
	var result types.Result
	if err := json.Unmarshal(blob, &result); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", runID, err)
	}
	return &result, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	query := `SELECT run_id, subject, success, tokens_used, cost_usd, created_at
		FROM reports ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var sum ReportSummary
		var success int
		if err := rows.Scan(&sum.RunID, &sum.Subject, &success, &sum.TokensUsed, &sum.CostUSD, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		sum.Success = success != 0
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) SaveComments(ctx context.Context, runID string, comments []types.Comment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sampled_comments
			(run_id, comment_id, post_id, parent_id, permalink, author_id,
			 created_at, edited_at, score, depth, is_moderator)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, comment_id) DO UPDATE SET
			edited_at = excluded.edited_at,
			score = excluded.score`)
	if err != nil {
		return fmt.Errorf("failed to prepare comment insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range stripBodies(comments) {
		var editedAt any
		if c.EditedAt != nil {
			editedAt = c.EditedAt.UTC()
		}
		if _, err := stmt.ExecContext(ctx, runID, c.ID, c.PostID, c.ParentID,
			c.Permalink, c.AuthorID, c.CreatedAt.UTC(), editedAt,
			c.Score, c.Depth, boolToInt(c.IsModerator)); err != nil {
			return fmt.Errorf("failed to save comment %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetComments(ctx context.Context, runID string) ([]types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT comment_id, post_id, parent_id, permalink, author_id,
		       created_at, edited_at, score, depth, is_moderator
		FROM sampled_comments WHERE run_id = ? ORDER BY comment_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	defer rows.Close()

	var comments []types.Comment
	for rows.Next() {
		var c types.Comment
		var parentID, permalink, authorID sql.NullString
		var editedAt sql.NullTime
		var isMod int
		if err := rows.Scan(&c.ID, &c.PostID, &parentID, &permalink, &authorID,
			&c.CreatedAt, &editedAt, &c.Score, &c.Depth, &isMod); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		c.ParentID = parentID.String
		c.Permalink = permalink.String
		c.AuthorID = authorID.String
		if editedAt.Valid {
			t := editedAt.Time
			c.EditedAt = &t
		}
		c.IsModerator = isMod != 0
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *SQLiteStore) UpsertSentiment(ctx context.Context, runID string, cls []types.SentimentClassification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sentiment_classifications
			(run_id, item_id, sentiment, subjectivity, confidence, from_cache, model_used, prompt_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, item_id) DO UPDATE SET
			sentiment = excluded.sentiment,
			subjectivity = excluded.subjectivity,
			confidence = excluded.confidence,
			from_cache = excluded.from_cache,
			model_used = excluded.model_used,
			prompt_version = excluded.prompt_version`)
	if err != nil {
		return fmt.Errorf("failed to prepare sentiment upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cls {
		if _, err := stmt.ExecContext(ctx, runID, c.ItemID, string(c.Sentiment),
			c.Subjectivity, c.Confidence, boolToInt(c.FromCache),
			c.ModelUsed, c.PromptVersion); err != nil {
			return fmt.Errorf("failed to upsert sentiment for %s: %w", c.ItemID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetSentiment(ctx context.Context, runID string, itemIDs []string) ([]types.SentimentClassification, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT item_id, sentiment, subjectivity, confidence, from_cache, model_used, prompt_version
		FROM sentiment_classifications
		WHERE run_id = ? AND item_id IN (%s) ORDER BY item_id`, placeholders(len(itemIDs)))
	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, runID)
	for _, id := range itemIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentiment classifications: %w", err)
	}
	defer rows.Close()

	var out []types.SentimentClassification
	for rows.Next() {
		var c types.SentimentClassification
		var sentiment string
		var fromCache int
		if err := rows.Scan(&c.ItemID, &sentiment, &c.Subjectivity, &c.Confidence,
			&fromCache, &c.ModelUsed, &c.PromptVersion); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment row: %w", err)
		}
		c.Sentiment = types.Sentiment(sentiment)
		c.FromCache = fromCache != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertHostility(ctx context.Context, runID string, cls []types.HostilityClassification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hostility_classifications
			(run_id, item_id, framework, target_group, mentions_group,
			 hostility_level, labels, confidence, rationale, from_cache, model_used, prompt_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, item_id, framework, target_group) DO UPDATE SET
			mentions_group = excluded.mentions_group,
			hostility_level = excluded.hostility_level,
			labels = excluded.labels,
			confidence = excluded.confidence,
			rationale = excluded.rationale,
			from_cache = excluded.from_cache,
			model_used = excluded.model_used,
			prompt_version = excluded.prompt_version`)
	if err != nil {
		return fmt.Errorf("failed to prepare hostility upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cls {
		labels, err := json.Marshal(c.Labels)
		if err != nil {
			return fmt.Errorf("failed to encode labels for %s: %w", c.ItemID, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, c.ItemID, string(c.Framework),
			c.TargetGroup, boolToInt(c.MentionsGroup), string(c.HostilityLevel),
			string(labels), c.Confidence, c.Rationale, boolToInt(c.FromCache),
			c.ModelUsed, c.PromptVersion); err != nil {
			return fmt.Errorf("failed to upsert hostility for %s: %w", c.ItemID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetHostility(ctx context.Context, runID string, itemIDs []string) ([]types.HostilityClassification, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT item_id, framework, target_group, mentions_group, hostility_level,
		       labels, confidence, rationale, from_cache, model_used, prompt_version
		FROM hostility_classifications
		WHERE run_id = ? AND item_id IN (%s)
		ORDER BY item_id, framework, target_group`, placeholders(len(itemIDs)))
	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, runID)
	for _, id := range itemIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load hostility classifications: %w", err)
	}
	defer rows.Close()

	var out []types.HostilityClassification
	for rows.Next() {
		var c types.HostilityClassification
		var framework, level, labels string
		var mentions, fromCache int
		if err := rows.Scan(&c.ItemID, &framework, &c.TargetGroup, &mentions, &level,
			&labels, &c.Confidence, &c.Rationale, &fromCache,
			&c.ModelUsed, &c.PromptVersion); err != nil {
			return nil, fmt.Errorf("failed to scan hostility row: %w", err)
		}
		c.Framework = types.Framework(framework)
		c.HostilityLevel = types.HostilityLevel(level)
		c.MentionsGroup = mentions != 0
		c.FromCache = fromCache != 0
		if err := json.Unmarshal([]byte(labels), &c.Labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels for %s: %w", c.ItemID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
