package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLStore persists records in a SQL database. The full record is kept as a
// JSON document next to a few indexed columns used for filtering.
type SQLStore struct {
	db *sqlx.DB
}

type recordRow struct {
	TS       int64  `db:"ts"`
	Strategy string `db:"strategy"`
	Record   string `db:"record"`
}

func openSQL(driver, dsn, schema string) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO recommendation_records (ts, request_id, strategy, record) VALUES (?, ?, ?, ?)`),
		rec.Timestamp.UnixNano(), rec.RequestID, string(rec.Strategy), string(b))
	return err
}

// Query returns records matching q in chronological order. With a Limit only
// the most recent matches are returned.
func (s *SQLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT ts, strategy, record FROM recommendation_records WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Strategy != "" {
		query += ` AND strategy = ?`
		args = append(args, string(q.Strategy))
	}
	query += ` ORDER BY ts, id`

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	res := make([]Record, 0, len(rows))
	for _, row := range rows {
		var r Record
		if err := json.Unmarshal([]byte(row.Record), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		if !q.Matches(r) {
			continue
		}
		res = append(res, r)
	}
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }
