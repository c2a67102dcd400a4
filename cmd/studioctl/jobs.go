package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studio/internal/domain"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage the batch job registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsStatusCommand(ctx))
	cmd.AddCommand(newJobsCancelCommand(ctx))
	cmd.AddCommand(newJobsPollCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			jobsList, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			printJobs(cmd, jobsList)
			return nil
		},
	}
}

func newJobsStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Refresh one job against the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			if err := reg.Load(cmd.Context()); err != nil {
				return err
			}
			job, err := reg.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJobs(cmd, []domain.BatchJob{job})
			return nil
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a job and wait for the state recheck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			if err := reg.Load(cmd.Context()); err != nil {
				return err
			}
			// Cancel blocks until the reconciling status check has run, so
			// the state printed here is the provider's, not the optimism.
			if err := reg.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			job, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("job %s disappeared from the registry", args[0])
			}
			printJobs(cmd, []domain.BatchJob{job})
			return nil
		},
	}
}

func newJobsPollCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll non-terminal jobs once, or continuously with --watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			if err := reg.Load(cmd.Context()); err != nil {
				return err
			}
			if err := reg.PollOnce(cmd.Context()); err != nil {
				return err
			}
			printJobs(cmd, reg.Jobs())
			if !watch {
				return nil
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-ticker.C:
					if err := reg.PollOnce(cmd.Context()); err != nil {
						return err
					}
					printJobs(cmd, reg.Jobs())
					if allTerminal(reg.Jobs()) {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until every job is terminal")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Polling interval with --watch")
	return cmd
}

func allTerminal(jobsList []domain.BatchJob) bool {
	for _, job := range jobsList {
		if !job.Status.Terminal() {
			return false
		}
	}
	return true
}

func printJobs(cmd *cobra.Command, jobsList []domain.BatchJob) {
	rows := make([][]string, 0, len(jobsList))
	for _, job := range jobsList {
		rows = append(rows, []string{
			job.ID,
			job.DisplayID,
			string(job.Status),
			job.Model,
			job.Age(time.Now()).Round(time.Second).String(),
			job.OutputFileURI,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "LABEL", "STATE", "MODEL", "AGE", "OUTPUT"}, rows))
}
