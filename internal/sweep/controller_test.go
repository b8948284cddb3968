package sweep

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightclub/flightclub/internal/flightsearch"
	"github.com/flightclub/flightclub/internal/reconcile"
	"github.com/flightclub/flightclub/internal/store"
)

// stubSearcher returns canned quotes keyed by "FROM->TO" and records the
// queries it served.
type stubSearcher struct {
	mu      sync.Mutex
	quotes  map[string]*flightsearch.Quote
	errs    map[string]error
	queries []flightsearch.Query
}

func routeKey(from, to string) string { return from + "->" + to }

func (s *stubSearcher) SearchQuote(ctx context.Context, query flightsearch.Query) (*flightsearch.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	key := routeKey(query.FlyFrom, query.FlyTo)
	if err, ok := s.errs[key]; ok {
		return nil, err
	}
	return s.quotes[key], nil
}

func (s *stubSearcher) Currency() string { return "EUR" }

func quoteFor(from, to string, price float64) *flightsearch.Quote {
	return &flightsearch.Quote{
		Price:              price,
		OriginAirport:      from,
		DestinationAirport: to,
		OriginCity:         from + " City",
		DestinationCity:    to + " City",
	}
}

// stubNotifier records sent bodies.
type stubNotifier struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (n *stubNotifier) Send(ctx context.Context, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.bodies = append(n.bodies, body)
	return nil
}

func (n *stubNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.bodies...)
}

type fixture struct {
	store      *store.PriceStore
	controller *Controller
	search     *stubSearcher
	notifier   *stubNotifier
	slept      *int
}

func newFixture(t *testing.T, seed map[string][]store.Entry) *fixture {
	t.Helper()
	backend := store.NewMemoryBackend()
	s := store.NewPriceStore(backend, nil)

	ctx := context.Background()
	for origin, entries := range seed {
		require.NoError(t, s.CreateGroup(ctx, origin))
		for _, e := range entries {
			require.NoError(t, s.AppendEntry(ctx, origin, e.Destination, e.Price))
		}
	}

	search := &stubSearcher{quotes: map[string]*flightsearch.Quote{}, errs: map[string]error{}}
	notifier := &stubNotifier{}
	slept := 0

	controller := New(Options{
		Store:    s,
		Engine:   reconcile.NewEngine(s, nil),
		Search:   search,
		Notifier: notifier,
		Throttle: time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept++
			return nil
		},
		Now: func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	})

	return &fixture{store: s, controller: controller, search: search, notifier: notifier, slept: &slept}
}

func TestSweep_RefreshesEveryTrackedRoute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}, {Destination: "BER", Price: 46522}},
	})
	f.search.quotes[routeKey("GDA", "WAW")] = quoteFor("GDA", "WAW", 19999)
	f.search.quotes[routeKey("GDA", "BER")] = quoteFor("GDA", "BER", 46522)

	require.NoError(t, f.controller.Sweep(ctx, false))

	entries, err := f.store.ReadGroup(ctx, "GDA")
	require.NoError(t, err)
	assert.Equal(t, 19999.0, entries[0].Price)
	assert.Equal(t, 46522.0, entries[1].Price)
	assert.Len(t, f.search.queries, 2)
	assert.Equal(t, 2, *f.slept, "one throttle pause per route")
}

func TestSweep_NotifiesOnlyOnOverwrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}},
	})
	// WAW exists (overwrite), OSL is novel (append).
	f.search.quotes[routeKey("GDA", "WAW")] = quoteFor("GDA", "WAW", 19999)

	require.NoError(t, f.controller.Sweep(ctx, true))

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "GDA")
	assert.Contains(t, sent[0], "WAW")
	assert.Contains(t, sent[0], "EUR")
}

func TestSweep_FreshInsertDoesNotNotify(t *testing.T) {
	// A quote whose reconciliation appends a new row is not an overwrite,
	// so no message goes out even with notifications on.
	ctx := context.Background()
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}},
	})
	// The provider reroutes the itinerary to a different arrival airport.
	f.search.quotes[routeKey("GDA", "WAW")] = quoteFor("GDA", "OSL", 15000)

	require.NoError(t, f.controller.Sweep(ctx, true))

	assert.Empty(t, f.notifier.sent())
	entries, err := f.store.ReadGroup(ctx, "GDA")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, store.Entry{Destination: "OSL", Price: 15000}, entries[1])
}

func TestSweep_NoQuoteSkipsPair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}},
	})
	// No canned quote: the searcher returns nil, nil.

	require.NoError(t, f.controller.Sweep(ctx, true))

	entries, err := f.store.ReadGroup(ctx, "GDA")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 21650.0, entries[0].Price, "store unchanged")
	assert.Empty(t, f.notifier.sent())
}

func TestSweep_SearchErrorContinues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}, {Destination: "BER", Price: 46522}},
	})
	f.search.errs[routeKey("GDA", "WAW")] = fmt.Errorf("provider down")
	f.search.quotes[routeKey("GDA", "BER")] = quoteFor("GDA", "BER", 40000)

	require.NoError(t, f.controller.Sweep(ctx, false))

	entries, err := f.store.ReadGroup(ctx, "GDA")
	require.NoError(t, err)
	assert.Equal(t, 21650.0, entries[0].Price, "failed route untouched")
	assert.Equal(t, 40000.0, entries[1].Price, "later route still refreshed")
}

func TestSweep_NotifierFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}, {Destination: "BER", Price: 46522}},
	})
	f.search.quotes[routeKey("GDA", "WAW")] = quoteFor("GDA", "WAW", 100)
	f.search.quotes[routeKey("GDA", "BER")] = quoteFor("GDA", "BER", 200)
	f.notifier.err = fmt.Errorf("sms gateway down")

	require.NoError(t, f.controller.Sweep(ctx, true))

	entries, err := f.store.ReadGroup(ctx, "GDA")
	require.NoError(t, err)
	assert.Equal(t, 100.0, entries[0].Price)
	assert.Equal(t, 200.0, entries[1].Price)
}

func TestSweep_CanceledContextAborts(t *testing.T) {
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.controller.Sweep(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.search.queries)
}

func TestSweep_UsesStandardSearchWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}},
	})

	require.NoError(t, f.controller.Sweep(ctx, false))

	require.Len(t, f.search.queries, 1)
	q := f.search.queries[0]
	assert.Equal(t, "GDA", q.FlyFrom)
	assert.Equal(t, "WAW", q.FlyTo)
	assert.Equal(t, 7*24*time.Hour, q.DateTo.Sub(q.DateFrom))
	assert.Equal(t, 7, q.NightsInDstFrom)
	assert.Equal(t, 14, q.NightsInDstTo)
}

func TestRunnerToggle(t *testing.T) {
	f := newFixture(t, nil)
	runner := NewRunner(f.controller, time.Minute, nil)

	assert.False(t, runner.Enabled(), "starts disabled")
	assert.True(t, runner.Toggle())
	assert.True(t, runner.Enabled())
	assert.False(t, runner.Toggle())
	assert.False(t, runner.Enabled())

	runner.SetEnabled(true)
	assert.True(t, runner.Enabled())
}

func TestRunnerSweepsWhileEnabled(t *testing.T) {
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}},
	})
	f.search.quotes[routeKey("GDA", "WAW")] = quoteFor("GDA", "WAW", 100)

	runner := NewRunner(f.controller, 5*time.Millisecond, nil)
	runner.SetEnabled(true)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	f.search.mu.Lock()
	queries := len(f.search.queries)
	f.search.mu.Unlock()
	assert.Greater(t, queries, 0, "at least one tick swept")
}

func TestRunnerSkipsWhileDisabled(t *testing.T) {
	f := newFixture(t, map[string][]store.Entry{
		"GDA": {{Destination: "WAW", Price: 21650}},
	})

	runner := NewRunner(f.controller, 5*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	f.search.mu.Lock()
	queries := len(f.search.queries)
	f.search.mu.Unlock()
	assert.Zero(t, queries, "disabled runner never queries")
}
