package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	From string
	To   string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track a new flight route",
		Long: `Search the flight provider for the cheapest round trip between two
places and record it in the price table.

Free-text names are accepted; the provider resolves them. Example:
  flightclub add --from "Warsaw Chopin Airport" --to Berlin`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "origin city or airport (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "destination city or airport (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runAdd(opts *AddOptions, cmd *cobra.Command) error {
	app, closeApp, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeApp()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	quote, outcome, err := app.AddRoute(cmd.Context(), opts.From, opts.To)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to add route", err)
	}
	if quote == nil {
		_ = out.Error("no_itinerary", fmt.Sprintf("no itinerary found for %s -> %s", opts.From, opts.To), nil)
		return NewExitError(ExitFailure, "no itinerary found")
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{
			"origin":      quote.OriginAirport,
			"destination": quote.DestinationAirport,
			"price":       quote.Price,
			"currency":    app.Search.Currency(),
			"outcome":     outcome.String(),
		})
	}
	return out.Success(quote.Summary(app.Search.Currency()))
}
