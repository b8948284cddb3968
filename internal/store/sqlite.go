package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteBackend emulates the spreadsheet grid in a local SQLite file.
// Insertion order is the rowid order of sheet_rows.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite creates or opens the grid database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteBackend) SheetExists(ctx context.Context, title string) (bool, error) {
	var id int64
	err := b.db.QueryRowContext(ctx, `SELECT id FROM sheets WHERE title = ?`, title).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *SQLiteBackend) CreateSheet(ctx context.Context, title string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO sheets (title) VALUES (?)
		ON CONFLICT(title) DO NOTHING
	`, title)
	return err
}

func (b *SQLiteBackend) ReadRows(ctx context.Context, title string) ([][]string, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT r.destination, r.price
		FROM sheet_rows r
		JOIN sheets s ON s.id = r.sheet_id
		WHERE s.title = ?
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

func (b *SQLiteBackend) AppendRow(ctx context.Context, title string, cells []string) error {
	if len(cells) != 2 {
		return fmt.Errorf("append expects a 2-cell row, got %d cells", len(cells))
	}
	// An append into a missing sheet creates it, matching the Sheets API
	// behavior for an append into a fresh range.
	if err := b.CreateSheet(ctx, title); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO sheet_rows (sheet_id, destination, price)
		SELECT id, ?, ? FROM sheets WHERE title = ?
	`, cells[0], cells[1], title)
	return err
}

func (b *SQLiteBackend) UpdateCell(ctx context.Context, title string, row int, value string) error {
	result, err := b.db.ExecContext(ctx, `
		UPDATE sheet_rows SET price = ?
		WHERE id = (
			SELECT r.id FROM sheet_rows r
			JOIN sheets s ON s.id = r.sheet_id
			WHERE s.title = ?
			ORDER BY r.id ASC
			LIMIT 1 OFFSET ?
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

func (b *SQLiteBackend) ListSheets(ctx context.Context) ([]string, error) {
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
