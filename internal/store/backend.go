package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by LookupPrice when no price is stored for the
// requested route.
var ErrNotFound = errors.New("route not found")

// ErrNoCellChanged is returned (wrapped in a BackendError) when an update
// round trip succeeds at the transport level but the backend reports that
// zero cells changed.
var ErrNoCellChanged = errors.New("no cell changed")

// BackendError wraps a grid transport or service failure. Callers match it
// with errors.As; the wrapped cause is preserved for logs.
type BackendError struct {
	Op  string // "create", "read", "append", "update", "list"
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("store backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendErr(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}

// Backend is the raw spreadsheet-style grid behind a PriceStore.
//
// Sheets are named partitions holding ordered rows of string cells. Rows
// keep insertion order; updates never reorder. There is no per-key
// addressing: UpdateCell targets the price cell of the 1-based row
// position within the sheet.
type Backend interface {
	// SheetExists reports whether the named sheet has been created.
	SheetExists(ctx context.Context, title string) (bool, error)

	// CreateSheet creates an empty sheet. It does not guard against
	// duplicate creation; that is the caller's responsibility.
	CreateSheet(ctx context.Context, title string) error

	// ReadRows returns every row of the sheet in stored order. A sheet
	// that does not exist reads as empty, not as an error.
	ReadRows(ctx context.Context, title string) ([][]string, error)

	// AppendRow adds one row to the tail of the sheet.
	AppendRow(ctx context.Context, title string, cells []string) error

	// UpdateCell overwrites the price cell (column B) of the 1-based row
	// within the sheet. It returns ErrNoCellChanged if the backend cannot
	// confirm that at least one cell changed.
	UpdateCell(ctx context.Context, title string, row int, value string) error

	// ListSheets returns all sheet titles in stored order.
	ListSheets(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// sheetPrefix namespaces origin-group sheets so that unrelated tabs in a
// shared spreadsheet are never mistaken for route data.
const sheetPrefix = "FROM_"

// SheetTitle returns the sheet name for an origin group, e.g. "FROM_GDA".
func SheetTitle(origin string) string {
	return sheetPrefix + origin
}

// originFromTitle reverses SheetTitle. ok is false for titles that are not
// origin-group sheets.
func originFromTitle(title string) (origin string, ok bool) {
	if len(title) <= len(sheetPrefix) || title[:len(sheetPrefix)] != sheetPrefix {
		return "", false
	}
	return title[len(sheetPrefix):], true
}
