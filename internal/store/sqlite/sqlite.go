// Package sqlite provides a durable, append-only record store backed by a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hedisam/txledger/internal/ledger"
	"github.com/hedisam/txledger/internal/units"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	idx           INTEGER PRIMARY KEY,
	sender        TEXT    NOT NULL,
	receiver      TEXT    NOT NULL,
	amount        TEXT    NOT NULL,
	message       TEXT    NOT NULL,
	keyword       TEXT    NOT NULL,
	timestamp     INTEGER NOT NULL,
	submission_id TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS records_submission_id ON records (submission_id) WHERE submission_id IS NOT NULL;
`

const selectColumns = `SELECT idx, sender, receiver, amount, message, keyword, timestamp, submission_id FROM records`

// RecordStore persists ledger records in a SQLite table keyed by their index.
type RecordStore struct {
	db *sql.DB
}

// Open creates or opens the database at path and makes sure the schema exists.
func Open(path string) (*RecordStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(path)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: sqlite has a single writer and appends must see each other
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &RecordStore{db: db}, nil
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

// Append inserts rec at the next index within a single db transaction.
func (s *RecordStore) Append(ctx context.Context, rec *ledger.Record) (*ledger.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int64
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	stored := rec.Clone()
	stored.Index = uint64(count)

	var submissionID sql.NullString
	if stored.SubmissionID != "" {
		submissionID = sql.NullString{String: stored.SubmissionID, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (idx, sender, receiver, amount, message, keyword, timestamp, submission_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		count, stored.Sender, stored.Receiver, stored.Amount.Dec(), stored.Message, stored.Keyword,
		stored.Timestamp.Unix(), submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return stored, nil
}

func (s *RecordStore) Count(ctx context.Context) (uint64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return uint64(count), nil
}

func (s *RecordStore) All(ctx context.Context) ([]*ledger.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []*ledger.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

func (s *RecordStore) Get(ctx context.Context, index uint64) (*ledger.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE idx = ?`, int64(index))
	return scanRecord(row)
}

func (s *RecordStore) FindBySubmission(ctx context.Context, submissionID string) (*ledger.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE submission_id = ?`, submissionID)
	return scanRecord(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*ledger.Record, error) {
	var (
		idx          int64
		amount       string
		timestamp    int64
		submissionID sql.NullString
		rec          ledger.Record
	)
	err := row.Scan(&idx, &rec.Sender, &rec.Receiver, &amount, &rec.Message, &rec.Keyword, &timestamp, &submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}

	rec.Amount, err = units.ParseWei(amount)
	if err != nil {
		return nil, fmt.Errorf("record %d has a corrupt amount: %w", idx, err)
	}
	rec.Index = uint64(idx)
	rec.Timestamp = time.Unix(timestamp, 0).UTC()
	rec.SubmissionID = submissionID.String

	return &rec, nil
}
