package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/pilot/pkg/executor/cli"
	"github.com/entrhq/pilot/pkg/executor/headless"
	"github.com/entrhq/pilot/pkg/types"
)

type runOptions struct {
	headless  bool
	json      bool
	artifacts string
	timeout   time.Duration
	verbosity string
}

func newRunCmd(g *globals) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run one task to completion",
		Example: `  pilot run "Find the Go 1.24 release notes and summarize the tooling changes"
  pilot run --headless --artifacts ./out "Take a screenshot of example.com"
  pilot run --json "Search for the latest zerolog release" | jq .type`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, g, opts, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.headless, "headless", false, "Plain progress output and an execution summary, for scripts and CI")
	flags.BoolVar(&opts.json, "json", false, "Write every event as a JSON line (implies --headless)")
	flags.StringVar(&opts.artifacts, "artifacts", "", "Write execution.json, summary.md and events.jsonl to this directory (implies --headless)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Stop the task after this long (headless only, default 10m)")
	flags.StringVar(&opts.verbosity, "verbosity", "normal", "Headless verbosity: quiet, normal, verbose or debug")

	return cmd
}

func runTask(cmd *cobra.Command, g *globals, opts *runOptions, task string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	_, exec, err := g.newExecutor(ctx)
	if err != nil {
		return err
	}
	defer closeExecutor(exec)

	if !opts.headless && !opts.json && opts.artifacts == "" {
		record, err := cli.NewExecutor(exec, cli.WithWriter(cmd.OutOrStdout())).RunTask(ctx, task)
		if err != nil {
			return err
		}
		if record.Outcome == types.OutcomeFailed {
			return fmt.Errorf("task failed: %w", record.Err)
		}
		return nil
	}

	hcfg := headless.DefaultConfig()
	hcfg.Task = task
	hcfg.Logging.JSON = opts.json
	hcfg.Logging.Verbosity = opts.verbosity
	if opts.timeout > 0 {
		hcfg.Timeout = opts.timeout
	}
	if opts.artifacts != "" {
		hcfg.Artifacts.Enabled = true
		hcfg.Artifacts.OutputDir = opts.artifacts
	}

	runner, err := headless.NewExecutor(exec, hcfg, headless.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	_, err = runner.Run(ctx)
	return err
}
