// Package headless runs a single pilot task without user interaction.
//
// The headless executor suits CI jobs, cron schedules and scripts. It runs the
// task to completion, prints progress at a chosen verbosity (or streams raw
// events as JSON lines) and can write artifacts for auditing:
//
//   - execution.json: full execution summary
//   - summary.md: human-readable markdown summary
//   - events.jsonl: every event the run emitted
//
// Example usage:
//
//	config := headless.DefaultConfig()
//	config.Task = "Find the latest Go release notes and summarize them"
//
//	executor, _ := headless.NewExecutor(agent.New(client, gw), config)
//	summary, err := executor.Run(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(summary.Status)
//
// A run that hits the step cap reports partial_success; a cancelled or timed
// out run reports stopped; a model failure reports failed and Run returns
// ErrTaskFailed.
package headless
