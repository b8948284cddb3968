package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sheets (
	id    BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS sheet_rows (
	id          BIGSERIAL PRIMARY KEY,
	sheet_id    BIGINT NOT NULL REFERENCES sheets(id),
	destination TEXT NOT NULL,
	price       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sheet_rows_sheet ON sheet_rows(sheet_id, id);
`

// PostgresBackend emulates the spreadsheet grid in Postgres, for running
// the tracker against a shared database instead of a personal sheet.
// Schema initialization is lazy so constructing the backend never needs a
// live connection.
type PostgresBackend struct {
	dsn    string
	openDB func(driverName, dsn string) (*sql.DB, error)

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgresBackend prepares a grid backend for the given connection
// string. The connection is established on first use.
func NewPostgresBackend(dsn string) (*PostgresBackend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	return &PostgresBackend{dsn: dsn, openDB: sql.Open}, nil
}

func (b *PostgresBackend) ensureReady() error {
	b.initOnce.Do(func() {
		db, err := b.openDB("postgres", b.dsn)
		if err != nil {
			b.initErr = err
			return
		}
		if _, err := db.Exec(postgresSchema); err != nil {
			db.Close()
			b.initErr = fmt.Errorf("failed to apply schema: %w", err)
			return
		}
		b.db = db
	})
	return b.initErr
}

func (b *PostgresBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *PostgresBackend) SheetExists(ctx context.Context, title string) (bool, error) {
	if err := b.ensureReady(); err != nil {
		return false, err
	}
	var id int64
	err := b.db.QueryRowContext(ctx, `SELECT id FROM sheets WHERE title = $1`, title).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *PostgresBackend) CreateSheet(ctx context.Context, title string) error {
	if err := b.ensureReady(); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO sheets (title) VALUES ($1)
		ON CONFLICT (title) DO NOTHING
	`, title)
	return err
}

func (b *PostgresBackend) ReadRows(ctx context.Context, title string) ([][]string, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT r.destination, r.price
		FROM sheet_rows r
		JOIN sheets s ON s.id = r.sheet_id
		WHERE s.title = $1
		ORDER BY r.id ASC
	`, title)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var destination, price string
		if err := rows.Scan(&destination, &price); err != nil {
			return nil, err
		}
		out = append(out, []string{destination, price})
	}
	return out, rows.Err()
}

func (b *PostgresBackend) AppendRow(ctx context.Context, title string, cells []string) error {
	if err := b.ensureReady(); err != nil {
		return err
	}
	if len(cells) != 2 {
		return fmt.Errorf("append expects a 2-cell row, got %d cells", len(cells))
	}
	if err := b.CreateSheet(ctx, title); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO sheet_rows (sheet_id, destination, price)
		SELECT id, $1, $2 FROM sheets WHERE title = $3
	`, cells[0], cells[1], title)
	return err
}

func (b *PostgresBackend) UpdateCell(ctx context.Context, title string, row int, value string) error {
	if err := b.ensureReady(); err != nil {
		return err
	}
	result, err := b.db.ExecContext(ctx, `
		UPDATE sheet_rows SET price = $1
		WHERE id = (
			SELECT r.id FROM sheet_rows r
			JOIN sheets s ON s.id = r.sheet_id
			WHERE s.title = $2
			ORDER BY r.id ASC
			LIMIT 1 OFFSET $3
		)
	`, value, title, row-1)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoCellChanged
	}
	return nil
}

func (b *PostgresBackend) ListSheets(ctx context.Context) ([]string, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, `SELECT title FROM sheets ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}
