package main

import (
	"github.com/spf13/cobra"

	"github.com/entrhq/pilot/pkg/executor/cli"
	"github.com/entrhq/pilot/pkg/session"
)

func newChatCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Start an interactive session. Messages that look like tasks (they mention
searching, browsing, screenshots and the like) run as tasks; everything else
is answered as chat. Type /stop to cancel a running task and exit to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			cfg, exec, err := g.newExecutor(ctx)
			if err != nil {
				return err
			}
			defer closeExecutor(exec)

			repl := cli.NewExecutor(exec,
				cli.WithRouter(session.NewRouter(cfg.Router.TaskKeywords...)),
				cli.WithReader(cmd.InOrStdin()),
				cli.WithWriter(cmd.OutOrStdout()),
			)
			if err := repl.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
