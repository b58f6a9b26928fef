package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"shopdesk/backend/internal/store"
	"shopdesk/backend/internal/store/xlsx"
)

const schema = `
CREATE TABLE IF NOT EXISTS sheet_rows (
	sheet_name TEXT NOT NULL,
	row_index INTEGER NOT NULL,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (sheet_name, row_index)
)`

// Store keeps each sheet as ordered JSONB rows. Writes replace the whole sheet
// inside one transaction holding an advisory lock on the sheet name.
type Store struct {
	db       *sql.DB
	observer store.Observer
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db, observer: store.NopObserver{}}, nil
}

func (s *Store) SetObserver(observer store.Observer) {
	s.observer = observer
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ReadSheet(ctx context.Context, name string) ([]store.Record, error) {
	return readRows(ctx, s.db, sheetName(name))
}

func (s *Store) WriteSheet(ctx context.Context, name string, records []store.Record) error {
	return s.Mutate(ctx, name, func([]store.Record) ([]store.Record, error) {
		return records, nil
	})
}

func (s *Store) NextID(ctx context.Context, name string) (int, error) {
	rows, err := s.ReadSheet(ctx, name)
	if err != nil {
		return 0, err
	}
	return store.NextID(rows), nil
}

func (s *Store) Mutate(ctx context.Context, name string, fn store.MutateFunc) (err error) {
	sheet := sheetName(name)
	defer func() {
		s.observer.SheetWritten(sheet, err)
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sheet); err != nil {
		return err
	}

	current, err := readRows(ctx, tx, sheet)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err = replaceRows(ctx, tx, sheet, next); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Reset(ctx context.Context) (err error) {
	defer func() {
		s.observer.SheetWritten("*", err)
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, sheet := range store.Sheets {
		if sheet == store.SheetUsers {
			continue
		}
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sheet); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet_name = $1`, sheet); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Export renders every stored sheet as a workbook.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sheet_name, data
		FROM sheet_rows
		ORDER BY sheet_name, row_index
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	sheets := map[string][]store.Record{}
	for rows.Next() {
		var (
			name string
			raw  []byte
		)
		if err := rows.Scan(&name, &raw); err != nil {
			return err
		}
		record, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		sheets[name] = append(sheets[name], record)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return xlsx.Encode(w, sheets)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readRows(ctx context.Context, q queryer, sheet string) ([]store.Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT data
		FROM sheet_rows
		WHERE sheet_name = $1
		ORDER BY row_index
	`, sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]store.Record, 0, 64)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		record, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func replaceRows(ctx context.Context, tx *sql.Tx, sheet string, records []store.Record) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet_name = $1`, sheet); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sheet_rows (sheet_name, row_index, data, updated_at)
		VALUES ($1, $2, $3, now())
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode %s row %d: %w", sheet, i, err)
		}
		if _, err := stmt.ExecContext(ctx, sheet, i, raw); err != nil {
			return err
		}
	}
	return nil
}

func decodeRecord(raw []byte) (store.Record, error) {
	record := store.Record{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return record, nil
}

func sheetName(name string) string {
	if canonical, ok := store.CanonicalSheet(name); ok {
		return canonical
	}
	return name
}
