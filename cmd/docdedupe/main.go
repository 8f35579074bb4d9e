package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "docdedupe",
		Short:   "Sync, analyze, and export duplicate document groups",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newSyncCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newServeStubCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
