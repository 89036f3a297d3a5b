package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agentflow/internal/infrastructure/wiring"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var workspaceDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "agentflow",
	Version: Version,
	Short:   "An orchestration runtime for agent and human task teams",
	Long: `Agentflow turns a goal into a dependency-ordered plan and drives it
to completion with a team of AI agents and humans:
1. Describe what you want done.
2. Review and approve the generated plan.
3. Watch tasks execute as their dependencies clear.`,
	SilenceUsage: true,
}

// Execute runs the CLI. Called by main.main().
func Execute() error {
	err := RootCmd.Execute()
	if err != nil {
		var cliErr *CLIError
		if asCLIError(err, &cliErr) && cliErr.Hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", cliErr.Hint)
		}
	}
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&workspaceDir, "dir", "C", "", "workspace directory (default: current directory)")
}

func loadRuntime() (*wiring.Runtime, error) {
	root := workspaceDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}
	return wiring.NewRuntime(root)
}
