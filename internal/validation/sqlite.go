package validation

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agenthands/philograph/internal/core/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS validation_items (
	id TEXT PRIMARY KEY,
	item_type TEXT NOT NULL,
	item_data TEXT NOT NULL,
	extraction_confidence REAL NOT NULL,
	priority TEXT NOT NULL,
	status TEXT NOT NULL,
	consensus_score REAL NOT NULL DEFAULT 0,
	final_status TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	resolved_at TEXT
);

CREATE TABLE IF NOT EXISTS validation_annotations (
	item_id TEXT NOT NULL REFERENCES validation_items(id),
	seq INTEGER NOT NULL,
	expert_id TEXT NOT NULL,
	expert_name TEXT NOT NULL,
	status TEXT NOT NULL,
	confidence_score REAL NOT NULL,
	comments TEXT NOT NULL DEFAULT '',
	timestamp TEXT NOT NULL,
	PRIMARY KEY (item_id, seq)
);

CREATE TABLE IF NOT EXISTS expert_assignments (
	expert_id TEXT NOT NULL,
	item_id TEXT NOT NULL REFERENCES validation_items(id),
	PRIMARY KEY (expert_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_validation_items_status ON validation_items(status);
`

// SQLiteStore persists the expert registry in a SQLite database. Annotation rows are insert-only.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, item model.ValidationItem) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var resolved sql.NullString
		if item.ResolvedAt != nil {
			resolved = sql.NullString{String: formatTime(*item.ResolvedAt), Valid: true}
		}
		data := string(item.ItemData)
		if data == "" {
			data = "null"
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO validation_items (id, item_type, item_data, extraction_confidence, priority, status,
				consensus_score, final_status, created_at, updated_at, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				priority = excluded.priority,
				status = excluded.status,
				consensus_score = excluded.consensus_score,
				final_status = excluded.final_status,
				updated_at = excluded.updated_at,
				resolved_at = excluded.resolved_at
		`, item.ID, item.ItemType, data, item.ExtractionConfidence, string(item.Priority), string(item.Status),
			item.ConsensusScore, string(item.FinalStatus), formatTime(item.CreatedAt), formatTime(item.UpdatedAt), resolved)
		if err != nil {
			return fmt.Errorf("upserting item %s: %w", item.ID, err)
		}

		for i, a := range item.Annotations {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO validation_annotations
					(item_id, seq, expert_id, expert_name, status, confidence_score, comments, timestamp)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, item.ID, i, a.ExpertID, a.ExpertName, string(a.Status), a.ConfidenceScore, a.Comments, formatTime(a.Timestamp))
			if err != nil {
				return fmt.Errorf("inserting annotation %d of %s: %w", i, item.ID, err)
			}
		}
		return nil
	})
}

const selectItems = `
	SELECT id, item_type, item_data, extraction_confidence, priority, status, consensus_score, final_status,
		created_at, updated_at, resolved_at
	FROM validation_items`

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.ValidationItem, error) {
	rows, err := s.db.QueryContext(ctx, selectItems+" WHERE id = ?", id)
	if err != nil {
		return model.ValidationItem{}, fmt.Errorf("querying item %s: %w", id, err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return model.ValidationItem{}, err
	}
	if len(items) == 0 {
		return model.ValidationItem{}, ErrItemNotFound
	}
	if err := s.loadAnnotations(ctx, items, " WHERE item_id = ?", id); err != nil {
		return model.ValidationItem{}, err
	}
	return items[0], nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.ValidationItem, error) {
	rows, err := s.db.QueryContext(ctx, selectItems)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadAnnotations(ctx, items, ""); err != nil {
		return nil, err
	}
	sortByCreation(items)
	return items, nil
}

func (s *SQLiteStore) loadAnnotations(ctx context.Context, items []model.ValidationItem, where string, args ...interface{}) error {
	index := make(map[string]int, len(items))
	for i := range items {
		index[items[i].ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, expert_id, expert_name, status, confidence_score, comments, timestamp
		FROM validation_annotations`+where+` ORDER BY item_id, seq`, args...)
	if err != nil {
		return fmt.Errorf("querying annotations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID, status, ts string
			a                  model.ExpertAnnotation
		)
		if err := rows.Scan(&itemID, &a.ExpertID, &a.ExpertName, &status, &a.ConfidenceScore, &a.Comments, &ts); err != nil {
			return fmt.Errorf("scanning annotation: %w", err)
		}
		a.Status = model.ValidationStatus(status)
		a.Timestamp = parseTime(ts)
		if i, ok := index[itemID]; ok {
			items[i].Annotations = append(items[i].Annotations, a)
		}
	}
	return rows.Err()
}

func scanItems(rows *sql.Rows) ([]model.ValidationItem, error) {
	defer rows.Close()
	items := []model.ValidationItem{}
	for rows.Next() {
		var (
			item                                        model.ValidationItem
			data, priority, status, final, created, upd string
			resolved                                    sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ItemType, &data, &item.ExtractionConfidence, &priority, &status,
			&item.ConsensusScore, &final, &created, &upd, &resolved); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.ItemData = []byte(data)
		item.Priority = model.Priority(priority)
		item.Status = model.ValidationStatus(status)
		item.FinalStatus = model.ValidationStatus(final)
		item.CreatedAt = parseTime(created)
		item.UpdatedAt = parseTime(upd)
		if resolved.Valid {
			t := parseTime(resolved.String)
			item.ResolvedAt = &t
		}
		item.Annotations = []model.ExpertAnnotation{}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Assign(ctx context.Context, expertID string, itemIDs []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range itemIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO expert_assignments (expert_id, item_id) VALUES (?, ?)", expertID, id); err != nil {
				return fmt.Errorf("assigning %s to %s: %w", id, expertID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Assignments(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT expert_id, item_id FROM expert_assignments ORDER BY expert_id, item_id")
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var expert, item string
		if err := rows.Scan(&expert, &item); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		out[expert] = append(out[expert], item)
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
