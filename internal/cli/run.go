package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunSubmitCmd(clientFn, outputFn),
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunSendsCmd(clientFn, outputFn),
		newRunRetryCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
		newRunStuckCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var projectID string
	var idempotencyKey string
	var triggeredBy string
	var params []string

	cmd := &cobra.Command{
		Use:   "submit ACTION_ID",
		Short: "Submit a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := SubmitRunRequest{
				ActionID:       args[0],
				IdempotencyKey: idempotencyKey,
				TriggeredBy:    triggeredBy,
			}

			if len(params) > 0 {
				req.Params = make(map[string]any)
				for _, kv := range params {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid param format %q, expected KEY=VALUE", kv)
					}
					req.Params[parts[0]] = parts[1]
				}
			}

			result, err := client.SubmitRun(projectID, req)
			if err != nil {
				return err
			}

			run := result.Run
			if result.Deduplicated {
				out.Success(fmt.Sprintf("Run already exists: %s", run.ID))
			} else {
				out.Success(fmt.Sprintf("Run submitted: %s", run.ID))
			}
			out.Print(
				[]string{"ID", "ACTION", "STATUS", "TRIGGERED_BY", "REQUESTED"},
				[][]string{{run.ID, run.ActionID, run.Status, run.TriggeredBy, run.RequestedAt}},
				result,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.Flags().StringVar(&idempotencyKey, "key", "", "Idempotency key (required)")
	cmd.Flags().StringVar(&triggeredBy, "by", "", "Who triggers the run (required)")
	cmd.Flags().StringSliceVar(&params, "param", nil, "Action params as KEY=VALUE (repeatable)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("by")

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var projectID string
	var status string
	var actionID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(projectID, ListRunsOpts{
				Status:   status,
				ActionID: actionID,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			out.Print(runHeaders(), runRows(runs), runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (QUEUED, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().StringVar(&actionID, "action", "", "Filter by action ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(runHeaders(), runRows([]RunResponse{*run}), run)
			return nil
		},
	}
}

func newRunSendsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "sends RUN_ID",
		Short: "List sends of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sends, err := client.ListSends(args[0])
			if err != nil {
				return err
			}

			headers := []string{"RECIPIENT", "STATUS", "SENT_AT", "ERROR"}
			rows := make([][]string, len(sends))
			for i, s := range sends {
				rows[i] = []string{s.RecipientEmail, s.Status, s.SentAt, s.Error}
			}

			out.Print(headers, rows, sends)
			return nil
		},
	}
}

func newRunRetryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "retry ID",
		Short: "Retry a failed or stuck run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.RetryRun(args[0], reason)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Retry run created: %s", run.ID))
			out.Print(runHeaders(), runRows([]RunResponse{*run}), run)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason for the retry (required, min 8 chars)")
	cmd.MarkFlagRequired("reason")

	return cmd
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Force-cancel a queued or running run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CancelRun(args[0], reason)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run cancelled: %s", run.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason for the cancellation (required, min 8 chars)")
	cmd.MarkFlagRequired("reason")

	return cmd
}

func newRunStuckCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stuck",
		Short: "List stuck runs (running with an expired lease)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListStuck()
			if err != nil {
				return err
			}

			headers := []string{"ID", "PROJECT", "ACTION", "ATTEMPTS", "LEASE_EXPIRED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.ProjectID, r.ActionID, fmt.Sprintf("%d/%d", r.Attempts, r.MaxAttempts), r.LeaseExpiresAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}
}

func runHeaders() []string {
	return []string{"ID", "ACTION", "STATUS", "TRIGGERED_BY", "ATTEMPTS", "REQUESTED"}
}

func runRows(runs []RunResponse) [][]string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{r.ID, r.ActionID, r.Status, r.TriggeredBy, fmt.Sprintf("%d/%d", r.Attempts, r.MaxAttempts), r.RequestedAt}
	}
	return rows
}
