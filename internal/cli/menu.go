package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flightclub/flightclub/internal/store"
	"github.com/flightclub/flightclub/internal/sweep"
)

// NewMenuCommand creates the menu command: the interactive loop with the
// background auto-update runner.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu",
		Long: `Run the interactive menu. Alongside the menu, a background runner
wakes on the configured sweep interval; while automatic updates are toggled
on it re-queries every tracked route and texts you about overwritten
prices.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(rootOpts, cmd)
		},
	}
}

func runMenu(rootOpts *RootOptions, cmd *cobra.Command) error {
	app, closeApp, err := openApp(rootOpts)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller := app.NewController()
	runner := sweep.NewRunner(controller, app.Config.Sweep.Interval.Std(), app.Log)
	go func() {
		// Runs until the menu exits; sweep failures are logged inside.
		_ = runner.Run(ctx)
	}()

	session := &menuSession{
		app:        app,
		controller: controller,
		runner:     runner,
		in:         bufio.NewScanner(cmd.InOrStdin()),
		out:        cmd.OutOrStdout(),
	}
	return session.run(ctx)
}

// menuSession drives the interactive loop. It is separated from the cobra
// command so tests can feed it scripted input.
type menuSession struct {
	app        *App
	controller *sweep.Controller
	runner     *sweep.Runner
	in         *bufio.Scanner
	out        io.Writer
}

func (s *menuSession) run(ctx context.Context) error {
	fmt.Fprintln(s.out, "Welcome to Flight Club!")
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.printMenu()
		choice, ok := s.readChoice()
		if !ok {
			return nil
		}
		fmt.Fprintln(s.out)
		switch choice {
		case 1:
			s.addFlight(ctx)
		case 2:
			s.lookupFlight(ctx)
		case 3:
			s.updateAll(ctx)
		case 4:
			s.printOrigins(ctx)
		case 5:
			s.printDestinations(ctx)
		case 6:
			status := "OFF"
			if s.runner.Toggle() {
				status = "ON"
			}
			fmt.Fprintf(s.out, "Automatic data updates: %s\n", status)
		case 7:
			fmt.Fprintln(s.out, "Bye!")
			return nil
		}
		fmt.Fprintln(s.out)
	}
}

func (s *menuSession) printMenu() {
	status := "OFF"
	if s.runner.Enabled() {
		status = "ON"
	}
	fmt.Fprintln(s.out, "What do you want to do?")
	fmt.Fprintln(s.out, "1. Add new flight.")
	fmt.Fprintln(s.out, "2. Search for existing flight data.")
	fmt.Fprintln(s.out, "3. Update existing flight data.")
	fmt.Fprintln(s.out, "4. Get available origin airports.")
	fmt.Fprintln(s.out, "5. Get available destination airports for given start point.")
	fmt.Fprintf(s.out, "6. Set up automatic data updates. (STATUS: %s)\n", status)
	fmt.Fprintln(s.out, "7. Exit.")
}

// readChoice keeps asking until the user types a number between 1 and 7.
// ok is false on end of input.
func (s *menuSession) readChoice() (int, bool) {
	for {
		line, ok := s.prompt("What do you want to do? -> ")
		if !ok {
			return 0, false
		}
		choice, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || choice < 1 || choice > 7 {
			fmt.Fprintln(s.out, "You have to choose a number between 1 and 7.")
			continue
		}
		return choice, true
	}
}

func (s *menuSession) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return "", false
	}
	return s.in.Text(), true
}

func (s *menuSession) addFlight(ctx context.Context) {
	from, ok := s.prompt("What is your origin airport? (be specific, e.g. Warsaw Chopin Airport) ")
	if !ok {
		return
	}
	to, ok := s.prompt("What is your destination city? ")
	if !ok {
		return
	}
	quote, _, err := s.app.AddRoute(ctx, from, to)
	if err != nil {
		fmt.Fprintf(s.out, "Could not add flight: %v\n", err)
		return
	}
	if quote == nil {
		fmt.Fprintln(s.out, "No itinerary found.")
		return
	}
	fmt.Fprintln(s.out, quote.Summary(s.app.Search.Currency()))
}

func (s *menuSession) lookupFlight(ctx context.Context) {
	from, ok := s.prompt("What is your origin airport? (IATA code) -> ")
	if !ok {
		return
	}
	to, ok := s.prompt("What is your destination airport? (IATA code) -> ")
	if !ok {
		return
	}
	origin := strings.ToUpper(strings.TrimSpace(from))
	destination := strings.ToUpper(strings.TrimSpace(to))
	price, err := s.app.Store.LookupPrice(ctx, origin, destination)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(s.out, "Flight not found.")
		return
	}
	if err != nil {
		fmt.Fprintf(s.out, "Lookup failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Flight from %s to %s for %g %s.\n", origin, destination, price, s.app.Config.Search.Currency)
}

func (s *menuSession) updateAll(ctx context.Context) {
	fmt.Fprintln(s.out, "Updating all tracked flights...")
	if err := s.controller.Sweep(ctx, false); err != nil {
		fmt.Fprintf(s.out, "Update failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Flights updated.")
}

func (s *menuSession) printOrigins(ctx context.Context) {
	origins, err := s.app.Store.ListOrigins(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Could not list origins: %v\n", err)
		return
	}
	if len(origins) == 0 {
		fmt.Fprintln(s.out, "No tracked origin airports.")
		return
	}
	fmt.Fprintln(s.out, "Available origin airports:")
	fmt.Fprintln(s.out, strings.Join(origins, ", "))
}

func (s *menuSession) printDestinations(ctx context.Context) {
	term, ok := s.prompt("What is your origin airport? -> ")
	if !ok {
		return
	}
	origin := strings.ToUpper(strings.TrimSpace(term))
	if len(origin) != 3 {
		// Free text goes through the resolver, IATA codes straight in.
		code, err := s.app.Search.IATACode(ctx, term)
		if err != nil {
			fmt.Fprintf(s.out, "Could not resolve %q: %v\n", term, err)
			return
		}
		origin = code
	}
	entries, err := s.app.Store.ReadGroup(ctx, origin)
	if err != nil {
		fmt.Fprintf(s.out, "Could not read destinations: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintf(s.out, "No tracked destinations from %s.\n", origin)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Destination)
	}
	fmt.Fprintln(s.out, "Available destination airports:")
	fmt.Fprintln(s.out, strings.Join(names, ", "))
}
