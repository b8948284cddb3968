package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewOriginsCommand creates the origins command.
func NewOriginsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "origins",
		Short:         "List tracked origin airports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer closeApp()

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: rootOpts.Verbose}

			origins, err := app.Store.ListOrigins(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list origins", err)
			}
			if rootOpts.Format == "json" {
				return out.Success(origins)
			}
			if len(origins) == 0 {
				return out.Success("No tracked origin airports.")
			}
			return out.Success("Available origin airports: " + strings.Join(origins, ", "))
		},
	}
}

// DestinationsOptions holds flags for the destinations command.
type DestinationsOptions struct {
	*RootOptions
	From string
}

// NewDestinationsCommand creates the destinations command.
func NewDestinationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DestinationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "destinations",
		Short:         "List tracked destinations for an origin airport",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestinations(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "origin airport IATA code (required)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runDestinations(opts *DestinationsOptions, cmd *cobra.Command) error {
	app, closeApp, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeApp()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	origin := strings.ToUpper(strings.TrimSpace(opts.From))
	entries, err := app.Store.ReadGroup(cmd.Context(), origin)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read origin group", err)
	}

	if opts.Format == "json" {
		routes := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			routes = append(routes, map[string]any{"destination": e.Destination, "price": e.Price})
		}
		return out.Success(routes)
	}
	if len(entries) == 0 {
		return out.Success(fmt.Sprintf("No tracked destinations from %s.", origin))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Destination)
	}
	return out.Success("Available destination airports: " + strings.Join(names, ", "))
}
