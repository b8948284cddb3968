package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flightclub/flightclub/internal/store"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	From string
	To   string
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Look up the stored price for a route",
		Long: `Look up the lowest recorded price for a tracked route.

Example:
  flightclub get --from GDA --to WAW`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "origin airport IATA code (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "destination airport IATA code (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runGet(opts *GetOptions, cmd *cobra.Command) error {
	app, closeApp, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeApp()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	origin := strings.ToUpper(strings.TrimSpace(opts.From))
	destination := strings.ToUpper(strings.TrimSpace(opts.To))

	price, err := app.Store.LookupPrice(cmd.Context(), origin, destination)
	if errors.Is(err, store.ErrNotFound) {
		_ = out.Error("not_found", fmt.Sprintf("no stored price for %s -> %s", origin, destination), nil)
		return NewExitError(ExitFailure, "route not found")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read price store", err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{
			"origin":      origin,
			"destination": destination,
			"price":       price,
			"currency":    app.Config.Search.Currency,
		})
	}
	return out.Success(fmt.Sprintf("Flight from %s to %s for %g %s.", origin, destination, price, app.Config.Search.Currency))
}
