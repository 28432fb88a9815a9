package main

import (
	"time"

	"github.com/spf13/cobra"

	"docket/internal/api"
	"docket/internal/ipc"
	"docket/internal/logging"
	"docket/internal/portal"
	"docket/internal/queue"
	"docket/internal/scheduler"
)

func newPassCommand(ctx *commandContext) *cobra.Command {
	var submittedBy string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Run one scheduling pass",
		Long: "Run one scheduling pass: claim urgent items individually, then batch the\n" +
			"grouped backlog. Uses the daemon when it is running so the result shows up\n" +
			"in `docket status`; otherwise runs against the store directly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemonOrStore(func(client *ipc.Client, store queue.Store) error {
				var summary api.PassSummary
				if client != nil {
					result, err := client.RunPass(submittedBy)
					if err != nil {
						return err
					}
					summary = result
				} else {
					sched, err := ctx.directScheduler(store)
					if err != nil {
						return err
					}
					summary = *api.FromPassResult(sched.RunSchedulingPass(cmd.Context(), submittedBy))
				}

				if jsonOutput {
					return writeJSON(cmd, summary)
				}
				printPassSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&submittedBy, "submitted-by", "", "Submitter identity recorded on created jobs (defaults to the configured identity)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the pass summary as JSON")

	return cmd
}

func newRequeueCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Re-admit failed items whose retry gate has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemonOrStore(func(client *ipc.Client, store queue.Store) error {
				var summary api.RequeueSummary
				if client != nil {
					result, err := client.Requeue()
					if err != nil {
						return err
					}
					summary = result
				} else {
					sched, err := ctx.directScheduler(store)
					if err != nil {
						return err
					}
					summary = *api.FromRequeueResult(sched.RequeueFailures(cmd.Context(), time.Now()))
				}

				if jsonOutput {
					return writeJSON(cmd, summary)
				}
				printRequeueSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the requeue summary as JSON")

	return cmd
}

// directScheduler builds a one-shot scheduler over an already opened store.
// The printed summary is the operator feedback, so the scheduler itself stays
// quiet.
func (c *commandContext) directScheduler(store queue.Store) (*scheduler.Scheduler, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	limits, err := portal.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return scheduler.New(cfg, store, limits, logging.NewNop()), nil
}
