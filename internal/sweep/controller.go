// Package sweep re-queries every tracked route and reconciles the results.
package sweep

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flightclub/flightclub/internal/flightsearch"
	"github.com/flightclub/flightclub/internal/notify"
	"github.com/flightclub/flightclub/internal/reconcile"
	"github.com/flightclub/flightclub/internal/store"
)

// Searcher is the slice of the flight-search client a sweep needs.
type Searcher interface {
	SearchQuote(ctx context.Context, query flightsearch.Query) (*flightsearch.Quote, error)
	Currency() string
}

// Options configures a Controller. Notifier may be nil when notifications
// are not configured. Sleep and Now are injectable for tests.
type Options struct {
	Store    *store.PriceStore
	Engine   *reconcile.Engine
	Search   Searcher
	Notifier notify.Notifier
	Throttle time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
	Logger   *slog.Logger
}

// Controller drives one full pass over the tracked route table: for every
// origin, for every destination, fetch a fresh quote and reconcile it.
//
// Route queries are strictly sequential with a fixed throttle pause between
// them. The pause is a rate-limit courtesy toward the search provider, not
// a correctness requirement; the sequencing is deliberate and must not be
// parallelized.
type Controller struct {
	store    *store.PriceStore
	engine   *reconcile.Engine
	search   Searcher
	notifier notify.Notifier
	throttle time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	log      *slog.Logger
}

// New builds a sweep controller.
func New(opts Options) *Controller {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		store:    opts.Store,
		engine:   opts.Engine,
		search:   opts.Search,
		notifier: opts.Notifier,
		throttle: opts.Throttle,
		sleep:    sleep,
		now:      now,
		log:      log.With("component", "sweep"),
	}
}

// Sweep runs one pass. Per-route failures (search errors, failed writes)
// are logged and the sweep proceeds to the next pair; only listing the
// origins or a canceled context aborts the pass.
//
// When sendNotifications is set, a successful overwrite (not a fresh
// insert) triggers an SMS with the quote summary.
func (c *Controller) Sweep(ctx context.Context, sendNotifications bool) error {
	runID := uuid.Must(uuid.NewV7()).String()
	log := c.log.With("run", runID)
	log.Info("sweep started", "notify", sendNotifications)

	origins, err := c.store.ListOrigins(ctx)
	if err != nil {
		return err
	}

	routes := 0
	for _, origin := range origins {
		entries, err := c.store.ReadGroup(ctx, origin)
		if err != nil {
			log.Error("failed to read origin group", "origin", origin, "error", err)
			continue
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.refreshRoute(ctx, log, origin, entry.Destination, sendNotifications)
			routes++
			if err := c.sleep(ctx, c.throttle); err != nil {
				return err
			}
		}
	}

	log.Info("sweep finished", "routes", routes)
	return nil
}

func (c *Controller) refreshRoute(ctx context.Context, log *slog.Logger, origin, destination string, sendNotifications bool) {
	log.Debug("refreshing route", "origin", origin, "destination", destination)

	query := flightsearch.NewRoundTripQuery(origin, destination, c.now())
	quote, err := c.search.SearchQuote(ctx, query)
	if err != nil {
		log.Error("search failed", "origin", origin, "destination", destination, "error", err)
		return
	}
	if quote == nil {
		// No itinerary available: skip, no write, no failure.
		log.Debug("no quote for route", "origin", origin, "destination", destination)
		return
	}

	outcome, err := c.engine.Reconcile(ctx, quote.OriginAirport, quote.DestinationAirport, quote.Price)
	if err != nil {
		// Failed writes are not retried; the sweep moves on.
		log.Error("reconcile failed", "origin", origin, "destination", destination, "error", err)
		return
	}

	if sendNotifications && outcome == reconcile.OutcomeUpdated && c.notifier != nil {
		body := quote.Summary(c.search.Currency())
		if err := c.notifier.Send(ctx, body); err != nil {
			log.Error("notification failed", "origin", origin, "destination", destination, "error", err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
