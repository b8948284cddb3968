package store

import (
	"fmt"
	"net/url"
	"strings"
)

// OpenBackend builds a grid backend from a DSN:
//
//	sheets://<spreadsheet-id>   Google Sheets (needs a token provider)
//	sqlite:///path/to/file.db   local SQLite grid
//	postgres://...              Postgres grid (DSN passed through)
//	memory://                   in-process grid
//
// A bare path with no scheme opens SQLite, the tracker's local default.
func OpenBackend(dsn string, tokens TokenProvider) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store dsn is empty")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	switch scheme {
	case "", "file", "sqlite":
		return OpenSQLite(dsnPath(parsed, dsn))
	case "memory", "mem", "inmem":
		return NewMemoryBackend(), nil
	case "postgres", "postgresql":
		return NewPostgresBackend(dsn)
	case "sheets":
		return NewSheetsBackend(SheetsBackendOptions{
			SpreadsheetID: parsed.Host,
			TokenProvider: tokens,
		})
	default:
		return nil, fmt.Errorf("unsupported store scheme: %s", scheme)
	}
}

// dsnPath extracts a filesystem path from a parsed DSN, falling back to the
// raw string for scheme-less values like "./flights.db".
func dsnPath(parsed *url.URL, raw string) string {
	if parsed.Scheme == "" {
		return raw
	}
	path := parsed.Path
	if parsed.Host != "" {
		// sqlite://flights.db parses the file name as the host.
		path = parsed.Host + path
	}
	return path
}
