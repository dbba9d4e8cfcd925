package adjustlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/shopfloor/core/model"
)

// SQLiteStore persists logs to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS adjustment_logs (
        id TEXT PRIMARY KEY,
        plan_id TEXT NOT NULL,
        entry_id TEXT NOT NULL,
        kind TEXT NOT NULL,
        ts INTEGER NOT NULL,
        record TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_adjustment_logs_plan ON adjustment_logs (plan_id, ts);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the records in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, recs ...model.AdjustmentLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO adjustment_logs (id, plan_id, entry_id, kind, ts, record) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.PlanID, r.EntryID, string(r.Kind), r.Timestamp.UnixNano(), string(b)); err != nil {
			return fmt.Errorf("insert log %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Query returns records matching q.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]model.AdjustmentLog, error) {
	var args []any
	query := `SELECT record FROM adjustment_logs WHERE 1=1`
	if q.PlanID != "" {
		query += ` AND plan_id = ?`
		args = append(args, q.PlanID)
	}
	if q.EntryID != "" {
		query += ` AND entry_id = ?`
		args = append(args, q.EntryID)
	}
	if q.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(q.Kind))
	}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	query += ` ORDER BY ts, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.AdjustmentLog
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r model.AdjustmentLog
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Purge deletes every record of planID.
func (s *SQLiteStore) Purge(ctx context.Context, planID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM adjustment_logs WHERE plan_id = ?`, planID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
