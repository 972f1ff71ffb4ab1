// Outreach CLI — инструмент командной строки для управления
// runs, каталогом действий и настройками дайджеста через HTTP API.
//
// Использование:
//
//	outreach [--api-url URL] [--operator ID] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	run     Управление runs
//	action  Каталог действий и preview
//	digest  Настройки дайджеста
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Outreach/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var operator string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "outreach",
		Short:         "Outreach CLI — workflow run engine tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().StringVar(&operator, "operator", "", "Operator ID for retry/cancel (X-Operator-Id)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, operator) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewActionCmd(clientFn, outputFn),
		cli.NewDigestCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
