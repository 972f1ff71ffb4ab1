package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewActionCmd создаёт группу команд для каталога действий.
func NewActionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Inspect the action catalog",
	}

	cmd.AddCommand(
		newActionListCmd(clientFn, outputFn),
		newActionPreviewCmd(clientFn, outputFn),
	)

	return cmd
}

func newActionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actions with availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			actions, err := client.ListActions(projectID)
			if err != nil {
				return err
			}

			headers := []string{"ID", "KIND", "RISK", "AVAILABLE", "REASON"}
			rows := make([][]string, len(actions))
			for i, a := range actions {
				available := "yes"
				if !a.Availability.Available {
					available = "no"
				}
				rows[i] = []string{a.ID, a.Kind, a.Risk, available, a.Availability.FailedPrecondition}
			}

			out.Print(headers, rows, actions)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newActionPreviewCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "preview ACTION_ID",
		Short: "Preview the recipient selection of an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			preview, err := client.PreviewAction(projectID, args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("%d recipients", preview.Count))

			headers := []string{"EMAIL", "REASON"}
			rows := make([][]string, len(preview.Recipients))
			for i, r := range preview.Recipients {
				rows[i] = []string{r.Email, r.Reason}
			}

			out.Print(headers, rows, preview)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.MarkFlagRequired("project")

	return cmd
}
