package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/config"
	"github.com/entrhq/pilot/pkg/logging"
)

// closeTimeout bounds gateway teardown on exit.
const closeTimeout = 10 * time.Second

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB3BA"))

func errorText(msg string) string {
	return errorStyle.Render("Error: " + msg)
}

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "pilot",
		Short:         "Pilot - an agent that drives browser and web tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.logLevel == "" {
				return nil
			}
			return logging.SetLevel(g.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default: ./config.yaml or ~/.pilot/config.yaml)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newRunCmd(g),
		newChatCmd(g),
		newToolsCmd(g),
		newConfigCmd(g),
	)

	return cmd
}

// load reads the configuration, letting --log-level override the file.
func (g *globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel == "" {
		if err := logging.SetLevel(cfg.Logging.Level); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newExecutor loads the config and connects an executor to the tool server.
func (g *globals) newExecutor(ctx context.Context) (*config.Config, *agent.Executor, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	client, err := config.BuildClient(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	exec, err := config.NewExecutor(ctx, cfg, client)
	if err != nil {
		return nil, nil, err
	}
	return cfg, exec, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// closeExecutor releases the executor's gateway session.
func closeExecutor(exec *agent.Executor) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := exec.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err.Error()))
	}
}
