package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff [TO] [FROM]",
	Short: "Diff two ref expressions (default: @workspace vs @stage)",
	Args:  cobra.MaximumNArgs(2),
	Run:   runDiff,
}

func init() {
	diffCmd.Flags().BoolP("files-only", "f", false, "accepted but ignored: the output is always a list of changed files, with no content")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) {
	to := "@workspace"
	from := "@stage"
	if len(args) >= 1 {
		to = args[0]
	}
	if len(args) >= 2 {
		from = args[1]
	}

	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	rp, err := e.openHere()
	if err != nil {
		fail(err)
	}
	active, err := rp.ActiveBranch()
	if err != nil {
		fail(err)
	}

	toPath, err := rp.ResolveStorePath(active, to)
	if err != nil {
		fail(err)
	}
	fromPath, err := rp.ResolveStorePath(active, from)
	if err != nil {
		fail(err)
	}

	out, err := rp.Diff(fromPath, toPath)
	if err != nil {
		fail(err)
	}
	fmt.Print(out)
}
