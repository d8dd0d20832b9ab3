package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var apiFlag string

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "crossedpathsctl",
		Short:         "CLI for the crossed-paths service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Crossed paths service base URL")

	root.AddCommand(newLabelCmd(), newMigrateCmd())
	root.AddCommand(newGroupsCmd(), newPeopleCmd(), newHistoryCmd(), newVisitCmd())
	return root
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
