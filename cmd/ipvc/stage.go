package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martinp-labs/ipvc/internal/diff"
)

var stageCmd = &cobra.Command{
	Use:     "stage",
	Short:   "Manage the staging area",
	GroupID: "stage",
}

var stageAddCmd = &cobra.Command{
	Use:   "add [PATHS...]",
	Short: "Sync disk into the workspace ref, then stage it",
	Run:   runStageAdd,
}

var stageRemoveCmd = &cobra.Command{
	Use:   "remove PATHS...",
	Short: "Revert stage to head's content",
	Run:   runStageRemove,
}

var stageStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is staged: changed files between head and stage",
	Run:   runStageStatus,
}

var stageDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show a human-readable diff between head and stage",
	Run:   runStageDiff,
}

var stageCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Promote stage into a new head commit",
	Run:   runStageCommit,
}

var stageUncommitCmd = &cobra.Command{
	Use:   "uncommit",
	Short: "Move head back to its parent, leaving stage untouched",
	Run:   runStageUncommit,
}

func init() {
	stageCommitCmd.Flags().StringP("message", "m", "", "commit message")

	stageCmd.AddCommand(stageAddCmd, stageRemoveCmd, stageStatusCmd, stageDiffCmd,
		stageCommitCmd, stageUncommitCmd)
	rootCmd.AddCommand(stageCmd)
}

func runStageAdd(cmd *cobra.Command, args []string) {
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
	if _, err := rp.StageAdd(active); err != nil {
		fail(err)
	}
}

func runStageRemove(cmd *cobra.Command, args []string) {
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
	if err := rp.StageRemove(active); err != nil {
		fail(err)
	}
}

func runStageStatus(cmd *cobra.Command, args []string) {
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
	changes, err := rp.StageStatus(active)
	if err != nil {
		fail(err)
	}
	fmt.Print(diff.FormatChanges(changes))
}

func runStageDiff(cmd *cobra.Command, args []string) {
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
	out, err := rp.StageDiff(active)
	if err != nil {
		fail(err)
	}
	fmt.Print(out)
}

func runStageCommit(cmd *cobra.Command, args []string) {
	message, _ := cmd.Flags().GetString("message")
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
	hash, err := rp.Commit(context.Background(), active, message)
	if err != nil {
		fail(err)
	}
	fmt.Println(hash)
}

func runStageUncommit(cmd *cobra.Command, args []string) {
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
	if err := rp.Uncommit(active); err != nil {
		fail(err)
	}
}
