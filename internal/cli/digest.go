package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewDigestCmd создаёт группу команд для настроек дайджеста.
func NewDigestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Manage weekly digest settings",
	}

	cmd.AddCommand(
		newDigestGetCmd(clientFn, outputFn),
		newDigestSetCmd(clientFn, outputFn),
	)

	return cmd
}

func newDigestGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show digest settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			digest, err := client.GetDigest(projectID)
			if err != nil {
				return err
			}

			out.Print(digestHeaders(), digestRows(digest), digest)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newDigestSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var projectID string
	var enabled bool
	var hour int
	var timezone string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update digest settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			digest, err := client.SetDigest(projectID, UpdateDigestRequest{
				Enabled:  enabled,
				Hour:     hour,
				Timezone: timezone,
			})
			if err != nil {
				return err
			}

			out.Success("Digest settings updated")
			out.Print(digestHeaders(), digestRows(digest), digest)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.Flags().BoolVar(&enabled, "enabled", false, "Enable the digest")
	cmd.Flags().IntVar(&hour, "hour", 9, "Local hour of day (0-23)")
	cmd.Flags().StringVar(&timezone, "tz", "UTC", "IANA timezone, e.g. Europe/Berlin")
	cmd.MarkFlagRequired("project")

	return cmd
}

func digestHeaders() []string {
	return []string{"PROJECT", "ENABLED", "HOUR", "TZ", "NEXT_AT"}
}

func digestRows(d *DigestResponse) [][]string {
	enabled := "no"
	if d.Enabled {
		enabled = "yes"
	}
	return [][]string{{d.ProjectID, enabled, strconv.Itoa(d.Hour), d.Timezone, d.NextAt}}
}
