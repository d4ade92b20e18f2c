package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/entrhq/pilot/pkg/config"
	"github.com/entrhq/pilot/pkg/gateway"
)

func newToolsCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the configured tool server offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			cfg, err := g.load()
			if err != nil {
				return err
			}
			gw, specs, err := config.BuildGateway(ctx, cfg.Gateway)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
				defer closeCancel()
				_ = gateway.Close(closeCtx, gw)
			}()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(specs)
			}

			if len(specs) == 0 {
				fmt.Fprintln(out, "The tool server did not describe any tools.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, spec := range specs {
				fmt.Fprintf(w, "%s\t%s\n", spec.Name, spec.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tool specs as JSON")
	return cmd
}
