// licman is the license management engine: an issuer CLI plus a
// licensee-side daemon that pulls, validates, and enforces licenses.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"licman/internal/app"
)

func main() {
	// A missing .env is fine; environment and config file still apply.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "licman",
		Short:         "License management engine",
		Long:          "licman issues, installs, and continuously revalidates software licenses.",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newActivateCmd(),
		newPullCmd(),
		newUninstallCmd(),
		newIssueCmd(),
		newKeysCmd(),
	)
	return root
}
