// Package flightsearch talks to the flight-search provider: one-quote
// route searches and free-text airport resolution.
package flightsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNoLocation is returned when the provider cannot resolve a free-text
// place name to an airport code.
var ErrNoLocation = errors.New("no matching location")

// Query describes one round-trip search. The provider is asked for its
// single cheapest itinerary (sorted by price, limit 1), which is what makes
// the stored value a "lowest observed" price.
type Query struct {
	FlyFrom         string
	FlyTo           string
	DateFrom        time.Time
	DateTo          time.Time
	NightsInDstFrom int
	NightsInDstTo   int
}

// NewRoundTripQuery builds the tracker's standard search window: depart
// within the next week, stay 7 to 14 nights, direct flights only.
func NewRoundTripQuery(flyFrom, flyTo string, now time.Time) Query {
	dateFrom := now
	dateTo := now.AddDate(0, 0, 7)
	nightsFrom := 7
	return Query{
		FlyFrom:         flyFrom,
		FlyTo:           flyTo,
		DateFrom:        dateFrom,
		DateTo:          dateTo,
		NightsInDstFrom: nightsFrom,
		NightsInDstTo:   nightsFrom + 7,
	}
}

// ClientOptions configures a Client. Tests point BaseURL at an httptest
// server.
type ClientOptions struct {
	APIKey     string
	Currency   string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the search provider's REST client. The API key travels in the
// apikey header; responses are JSON.
type Client struct {
	apiKey     string
	currency   string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient builds a search client.
func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://tequila-api.kiwi.com"
	}
	currency := strings.TrimSpace(opts.Currency)
	if currency == "" {
		currency = "EUR"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		apiKey:     opts.APIKey,
		currency:   currency,
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log.With("component", "flightsearch"),
	}
}

// Currency returns the currency quotes are requested in.
func (c *Client) Currency() string {
	return c.currency
}

// IATACode resolves a free-text city or airport name to its IATA code.
// Returns ErrNoLocation when nothing matches.
func (c *Client) IATACode(ctx context.Context, term string) (string, error) {
	q := url.Values{}
	q.Set("term", term)
	q.Set("location_types", "airport")
	var out struct {
		Locations []struct {
			Code string `json:"code"`
		} `json:"locations"`
	}
	if err := c.getJSON(ctx, "/locations/query?"+q.Encode(), &out); err != nil {
		return "", err
	}
	if len(out.Locations) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoLocation, term)
	}
	return out.Locations[0].Code, nil
}

// SearchQuote returns the cheapest itinerary for the query, or nil when the
// provider has no itinerary for the route. A nil quote is not an error; the
// caller skips the pair.
func (c *Client) SearchQuote(ctx context.Context, query Query) (*Quote, error) {
	q := url.Values{}
	q.Set("fly_from", query.FlyFrom)
	q.Set("fly_to", query.FlyTo)
	q.Set("date_from", query.DateFrom.Format("2006-01-02"))
	q.Set("date_to", query.DateTo.Format("2006-01-02"))
	q.Set("nights_in_dst_from", strconv.Itoa(query.NightsInDstFrom))
	q.Set("nights_in_dst_to", strconv.Itoa(query.NightsInDstTo))
	q.Set("flight_type", "round")
	q.Set("curr", c.currency)
	q.Set("max_stopovers", "0")
	q.Set("limit", "1")
	q.Set("sort", "price")

	var out struct {
		Data []struct {
			Price       float64 `json:"price"`
			FlyFrom     string  `json:"flyFrom"`
			FlyTo       string  `json:"flyTo"`
			CityFrom    string  `json:"cityFrom"`
			CityTo      string  `json:"cityTo"`
			CountryFrom struct {
				Name string `json:"name"`
			} `json:"countryFrom"`
			CountryTo struct {
				Name string `json:"name"`
			} `json:"countryTo"`
			Distance float64 `json:"distance"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/v2/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		c.log.Debug("no itinerary available", "from", query.FlyFrom, "to", query.FlyTo)
		return nil, nil
	}
	d := out.Data[0]
	return &Quote{
		Price:              d.Price,
		OriginAirport:      d.FlyFrom,
		DestinationAirport: d.FlyTo,
		OriginCity:         d.CityFrom,
		DestinationCity:    d.CityTo,
		OriginCountry:      d.CountryFrom.Name,
		DestinationCountry: d.CountryTo.Name,
		Distance:           d.Distance,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("search api %s failed: status=%d message=%s",
			strings.SplitN(path, "?", 2)[0], resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
