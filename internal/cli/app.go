package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/flightclub/flightclub/internal/config"
	"github.com/flightclub/flightclub/internal/flightsearch"
	"github.com/flightclub/flightclub/internal/googleauth"
	"github.com/flightclub/flightclub/internal/notify"
	"github.com/flightclub/flightclub/internal/reconcile"
	"github.com/flightclub/flightclub/internal/store"
	"github.com/flightclub/flightclub/internal/sweep"
)

// Searcher is the slice of the flight-search client the CLI needs.
type Searcher interface {
	sweep.Searcher
	IATACode(ctx context.Context, term string) (string, error)
}

// App bundles the wired components behind the CLI commands. Tests build it
// directly over a memory store and stub collaborators; production goes
// through openApp.
type App struct {
	Config   *config.Config
	Store    *store.PriceStore
	Engine   *reconcile.Engine
	Search   Searcher
	Notifier notify.Notifier // nil when notifications are not configured
	Log      *slog.Logger
}

// openApp loads config and wires the whole system. The returned close
// function releases the store backend.
func openApp(opts *RootOptions) (*App, func(), error) {
	log := newLogger(opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "configuration not usable", err)
	}

	var tokens store.TokenProvider
	if cfg.Google != nil {
		source := googleauth.NewTokenSource(googleauth.Options{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			TokenFile:    cfg.Google.TokenFile,
			Logger:       log,
		})
		tokens = source.Token
	}

	backend, err := store.OpenBackend(cfg.Store.DSN, tokens)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open price store", err)
	}
	priceStore := store.NewPriceStore(backend, log)

	app := &App{
		Config: cfg,
		Store:  priceStore,
		Engine: reconcile.NewEngine(priceStore, log),
		Search: flightsearch.NewClient(flightsearch.ClientOptions{
			APIKey:   cfg.Search.APIKey,
			Currency: cfg.Search.Currency,
			BaseURL:  cfg.Search.BaseURL,
			Logger:   log,
		}),
		Log: log,
	}
	if cfg.Notify != nil {
		app.Notifier = notify.NewTwilioClient(notify.TwilioOptions{
			AccountSID: cfg.Notify.AccountSID,
			AuthToken:  cfg.Notify.AuthToken,
			From:       cfg.Notify.From,
			To:         cfg.Notify.To,
			Logger:     log,
		})
	}

	closeApp := func() {
		if err := priceStore.Close(); err != nil {
			log.Error("error closing price store", "error", err)
		}
	}
	return app, closeApp, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewController builds a sweep controller over the app's components.
func (a *App) NewController() *sweep.Controller {
	return sweep.New(sweep.Options{
		Store:    a.Store,
		Engine:   a.Engine,
		Search:   a.Search,
		Notifier: a.Notifier,
		Throttle: a.Config.Sweep.Throttle.Std(),
		Logger:   a.Log,
	})
}

// AddRoute searches the provider for the cheapest itinerary between two
// free-text places and records it. A nil quote means no itinerary was
// found and nothing was written.
func (a *App) AddRoute(ctx context.Context, from, to string) (*flightsearch.Quote, reconcile.Outcome, error) {
	query := flightsearch.NewRoundTripQuery(from, to, time.Now())
	quote, err := a.Search.SearchQuote(ctx, query)
	if err != nil {
		return nil, reconcile.OutcomeNone, err
	}
	if quote == nil {
		return nil, reconcile.OutcomeNone, nil
	}
	outcome, err := a.Engine.Reconcile(ctx, quote.OriginAirport, quote.DestinationAirport, quote.Price)
	if err != nil {
		return quote, reconcile.OutcomeNone, err
	}
	return quote, outcome, nil
}
