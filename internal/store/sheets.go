package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TokenProvider yields a valid OAuth bearer token for the Sheets API,
// refreshing it transparently when expired.
type TokenProvider func(ctx context.Context) (string, error)

// SheetsBackendOptions configures a SheetsBackend. Zero values pick the
// production defaults; tests point BaseURL at an httptest server.
type SheetsBackendOptions struct {
	SpreadsheetID string
	TokenProvider TokenProvider
	BaseURL       string
	HTTPClient    *http.Client
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
}

// SheetsBackend talks to the Google Sheets v4 REST API. One spreadsheet
// holds the whole table; each origin group is a tab.
//
// Rate-limited (429) and server-side (5xx) responses are retried with
// exponential backoff, honoring Retry-After. Client errors are not.
type SheetsBackend struct {
	spreadsheetID string
	tokenProvider TokenProvider
	baseURL       string
	httpClient    *http.Client
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
}

// NewSheetsBackend builds a Sheets grid backend.
func NewSheetsBackend(opts SheetsBackendOptions) (*SheetsBackend, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if opts.TokenProvider == nil {
		return nil, fmt.Errorf("token provider is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://sheets.googleapis.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &SheetsBackend{
		spreadsheetID: opts.SpreadsheetID,
		tokenProvider: opts.TokenProvider,
		baseURL:       baseURL,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
	}, nil
}

func (b *SheetsBackend) Close() error { return nil }

// gridRange renders the A1-notation range for a tab, e.g. "'FROM_GDA'!A:B".
func gridRange(title, cells string) string {
	return "'" + title + "'!" + cells
}

func (b *SheetsBackend) SheetExists(ctx context.Context, title string) (bool, error) {
	titles, err := b.ListSheets(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range titles {
		if t == title {
			return true, nil
		}
	}
	return false, nil
}

func (b *SheetsBackend) ListSheets(ctx context.Context) ([]string, error) {
	var out struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	path := fmt.Sprintf("/v4/spreadsheets/%s?fields=sheets.properties.title", url.PathEscape(b.spreadsheetID))
	if err := b.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(out.Sheets))
	for _, s := range out.Sheets {
		titles = append(titles, s.Properties.Title)
	}
	return titles, nil
}

func (b *SheetsBackend) CreateSheet(ctx context.Context, title string) error {
	body := map[string]any{
		"requests": []map[string]any{
			{"addSheet": map[string]any{"properties": map[string]any{"title": title}}},
		},
	}
	path := fmt.Sprintf("/v4/spreadsheets/%s:batchUpdate", url.PathEscape(b.spreadsheetID))
	return b.doJSON(ctx, http.MethodPost, path, body, nil)
}

func (b *SheetsBackend) ReadRows(ctx context.Context, title string) ([][]string, error) {
	// Reading a range on a missing tab is a client error at the API, so a
	// missing sheet is detected first and reads as empty.
	exists, err := b.SheetExists(ctx, title)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	var out struct {
		Values [][]any `json:"values"`
	}
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s",
		url.PathEscape(b.spreadsheetID), url.PathEscape(gridRange(title, "A:B")))
	if err := b.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(out.Values))
	for _, raw := range out.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, cellString(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (b *SheetsBackend) AppendRow(ctx context.Context, title string, cells []string) error {
	body := map[string]any{"values": [][]string{cells}}
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		url.PathEscape(b.spreadsheetID), url.PathEscape(gridRange(title, "A:B")))
	return b.doJSON(ctx, http.MethodPost, path, body, nil)
}

func (b *SheetsBackend) UpdateCell(ctx context.Context, title string, row int, value string) error {
	var out struct {
		UpdatedCells int `json:"updatedCells"`
	}
	body := map[string]any{"values": [][]string{{value}}}
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?valueInputOption=RAW",
		url.PathEscape(b.spreadsheetID), url.PathEscape(gridRange(title, "B"+strconv.Itoa(row))))
	if err := b.doJSON(ctx, http.MethodPut, path, body, &out); err != nil {
		return err
	}
	if out.UpdatedCells == 0 {
		return ErrNoCellChanged
	}
	return nil
}

// doJSON performs one API call with bearer auth, retrying rate-limit and
// server errors with exponential backoff.
func (b *SheetsBackend) doJSON(ctx context.Context, method, path string, body, out any) error {
	token, err := b.tokenProvider(ctx)
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("sheets token is empty")
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	endpoint := b.baseURL + path

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.httpClient.Do(req)
		if err != nil {
			if attempt < b.maxRetries {
				if waitErr := sleepContext(ctx, b.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil {
				return nil
			}
			return json.Unmarshal(respBody, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < b.maxRetries {
			if waitErr := sleepContext(ctx, b.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		message := strings.TrimSpace(string(respBody))
		var parsed struct {
			Error struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return fmt.Errorf("sheets api %s failed: status=%d message=%s", path, resp.StatusCode, message)
	}
}

func (b *SheetsBackend) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > b.maxDelay {
			return b.maxDelay
		}
		return retryAfter
	}
	delay := b.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.maxDelay {
			return b.maxDelay
		}
	}
	if delay > b.maxDelay {
		return b.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cellString renders a Sheets cell value the way the sheet displays it:
// numbers without a trailing ".0", everything else via fmt.
func cellString(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
