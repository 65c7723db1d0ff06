// Package archive provides the SQLite-backed resolution chronicle.
// Redis holds only the live branch state; the archive keeps a durable
// record of every resolution for replay and review.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// DB wraps a SQLite connection for the resolution chronicle.
type DB struct {
	conn *sqlx.DB
}

// Entry is one archived resolution.
type Entry struct {
	ID          int64     `db:"id" json:"id"`
	BranchID    string    `db:"branch_id" json:"branch_id"`
	Episode     int       `db:"episode" json:"episode"`
	ChoiceID    string    `db:"choice_id" json:"choice_id"`
	ChoiceText  string    `db:"choice_text" json:"choice_text"`
	ChoiceType  string    `db:"choice_type" json:"choice_type"`
	Magnitude   string    `db:"magnitude" json:"magnitude"`
	Derailed    bool      `db:"derailed" json:"derailed"`
	SnapshotRaw string    `db:"snapshot_json" json:"-"`
	ResolvedAt  time.Time `db:"resolved_at" json:"resolved_at"`
}

// Snapshot decodes the stored branch snapshot.
func (e *Entry) Snapshot() (*branch.BranchState, error) {
	var b branch.BranchState
	if err := json.Unmarshal([]byte(e.SnapshotRaw), &b); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &b, nil
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate archive db: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resolutions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		branch_id TEXT NOT NULL,
		episode INTEGER NOT NULL,
		choice_id TEXT NOT NULL,
		choice_text TEXT NOT NULL,
		choice_type TEXT NOT NULL,
		magnitude TEXT NOT NULL,
		derailed INTEGER NOT NULL,
		snapshot_json TEXT NOT NULL,
		resolved_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resolutions_branch
		ON resolutions (branch_id, episode);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Append records one resolution. The snapshot is the branch state after
// the resolution was applied.
func (db *DB) Append(ctx context.Context, b *branch.BranchState, choice narrative.Choice, derailed bool) error {
	snapshot, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal branch snapshot: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO resolutions
			(branch_id, episode, choice_id, choice_text, choice_type, magnitude, derailed, snapshot_json, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.CurrentEpisode, choice.ID, choice.Text,
		string(choice.Type), string(choice.Magnitude), derailed,
		string(snapshot), time.Now())
	if err != nil {
		return fmt.Errorf("failed to append resolution: %w", err)
	}
	return nil
}

// ListByBranch returns the chronicle for a branch in episode order.
func (db *DB) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]Entry, error) {
	var entries []Entry
	err := db.conn.SelectContext(ctx, &entries, `
		SELECT id, branch_id, episode, choice_id, choice_text, choice_type, magnitude, derailed, snapshot_json, resolved_at
		FROM resolutions
		WHERE branch_id = ?
		ORDER BY episode ASC, id ASC`,
		branchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	return entries, nil
}
