package store

import (
	"context"
	"io"
	"log/slog"
	"strconv"
)

// Entry is one destination/price pair inside an origin group, in stored
// (insertion) order.
type Entry struct {
	Destination string
	Price       float64
}

// PriceStore exposes the route table over a grid Backend.
//
// A PriceStore is safe for concurrent reads. Mutations against the same
// origin group must be serialized by the caller (the reconciliation engine
// holds a per-origin lock); the store itself performs no locking because
// the authoritative state lives behind a remote round trip.
type PriceStore struct {
	backend Backend
	log     *slog.Logger
}

// NewPriceStore wraps a grid backend. A nil logger disables diagnostics.
func NewPriceStore(backend Backend, log *slog.Logger) *PriceStore {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PriceStore{backend: backend, log: log.With("component", "store")}
}

// Close closes the underlying backend.
func (s *PriceStore) Close() error {
	return s.backend.Close()
}

// GroupExists reports whether the origin group has been created. A backend
// failure reads as "does not exist"; the subsequent mutation surfaces the
// real error.
func (s *PriceStore) GroupExists(ctx context.Context, origin string) bool {
	exists, err := s.backend.SheetExists(ctx, SheetTitle(origin))
	if err != nil {
		s.log.Error("sheet existence check failed", "origin", origin, "error", err)
		return false
	}
	return exists
}

// CreateGroup creates an empty partition for the origin. It does not guard
// against duplicate creation.
func (s *PriceStore) CreateGroup(ctx context.Context, origin string) error {
	s.log.Debug("creating origin group", "origin", origin)
	if err := s.backend.CreateSheet(ctx, SheetTitle(origin)); err != nil {
		return backendErr("create", err)
	}
	return nil
}

// ReadGroup returns the group's entries in stored order. A missing group
// reads as empty. Rows that are not exactly a 2-column destination/price
// pair, including rows whose price cell does not parse as a number, are
// silently skipped.
func (s *PriceStore) ReadGroup(ctx context.Context, origin string) ([]Entry, error) {
	rows, err := s.backend.ReadRows(ctx, SheetTitle(origin))
	if err != nil {
		return nil, backendErr("read", err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if len(row) != 2 {
			continue
		}
		price, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Destination: row[0], Price: price})
	}
	return entries, nil
}

// AppendEntry adds one new row to the tail of the origin group.
func (s *PriceStore) AppendEntry(ctx context.Context, origin, destination string, price float64) error {
	s.log.Debug("appending entry", "origin", origin, "destination", destination, "price", price)
	row := []string{destination, formatPrice(price)}
	if err := s.backend.AppendRow(ctx, SheetTitle(origin), row); err != nil {
		return backendErr("append", err)
	}
	return nil
}

// UpdateEntry overwrites the price cell at the 1-based row position within
// the origin group. It fails unless the backend confirms at least one cell
// changed.
func (s *PriceStore) UpdateEntry(ctx context.Context, origin string, position int, price float64) error {
	s.log.Debug("updating entry", "origin", origin, "position", position, "price", price)
	if err := s.backend.UpdateCell(ctx, SheetTitle(origin), position, formatPrice(price)); err != nil {
		return backendErr("update", err)
	}
	return nil
}

// ListOrigins returns the origin codes of all created groups in stored
// order. Sheets that are not origin groups are ignored.
func (s *PriceStore) ListOrigins(ctx context.Context) ([]string, error) {
	titles, err := s.backend.ListSheets(ctx)
	if err != nil {
		return nil, backendErr("list", err)
	}
	origins := make([]string, 0, len(titles))
	for _, title := range titles {
		if origin, ok := originFromTitle(title); ok {
			origins = append(origins, origin)
		}
	}
	return origins, nil
}

// LookupPrice returns the stored price for a route, or ErrNotFound when the
// group or destination is absent. First match in stored order wins.
func (s *PriceStore) LookupPrice(ctx context.Context, origin, destination string) (float64, error) {
	entries, err := s.ReadGroup(ctx, origin)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Destination == destination {
			return e.Price, nil
		}
	}
	return 0, ErrNotFound
}

// formatPrice renders a price cell without trailing zeros, so integral
// prices round-trip as plain integers.
func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
