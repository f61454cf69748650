package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/martinp-labs/ipvc/internal/replay"
)

var branchCmd = &cobra.Command{
	Use:     "branch",
	Short:   "Manage branches",
	GroupID: "branch",
}

var branchCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new branch from a ref",
	Args:  cobra.ExactArgs(1),
	Run:   runBranchCreate,
}

var branchCheckoutCmd = &cobra.Command{
	Use:   "checkout NAME",
	Short: "Switch the active branch",
	Args:  cobra.ExactArgs(1),
	Run:   runBranchCheckout,
}

var branchLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List branches",
	Run:   runBranchLs,
}

var branchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active branch name",
	Run:   runBranchStatus,
}

var branchHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Walk the active branch's first-parent chain",
	Run:   runBranchHistory,
}

var branchMergeCmd = &cobra.Command{
	Use:   "merge THEIRS",
	Short: "Merge another branch's head into the active branch",
	Args:  cobra.ExactArgs(1),
	Run:   runBranchMerge,
}

var branchReplayCmd = &cobra.Command{
	Use:   "replay THEIRS",
	Short: "Rebuild the active branch's commits onto another branch's head",
	Args:  cobra.ExactArgs(1),
	Run:   runBranchReplay,
}

var branchShowCmd = &cobra.Command{
	Use:   "show REF",
	Short: "List or cat the contents at a ref expression",
	Args:  cobra.ExactArgs(1),
	Run:   runBranchShow,
}

func init() {
	branchCreateCmd.Flags().StringP("from", "f", "", "branch to create from (default: active branch's head)")
	branchCreateCmd.Flags().BoolP("no-checkout", "n", false, "don't switch to the new branch")

	branchHistoryCmd.Flags().BoolP("hashes", "s", false, "show commit hashes")

	branchMergeCmd.Flags().BoolP("no-ff", "n", false, "accepted but ignored: a merge whose head is the common ancestor always fast-forwards")
	branchMergeCmd.Flags().BoolP("abort", "a", false, "abort a pending merge")
	branchMergeCmd.Flags().StringP("resolve", "r", "", "resolve a pending merge with this commit message")
	branchMergeCmd.Flags().Lookup("resolve").NoOptDefVal = " "

	branchReplayCmd.Flags().BoolP("abort", "a", false, "abort a pending replay")
	branchReplayCmd.Flags().BoolP("resume", "r", false, "resume a pending replay")

	branchShowCmd.Flags().BoolP("viewer", "b", false, "accepted but ignored: content is always written to stdout")

	branchCmd.AddCommand(branchCreateCmd, branchCheckoutCmd, branchLsCmd, branchStatusCmd,
		branchHistoryCmd, branchMergeCmd, branchReplayCmd, branchShowCmd)
	rootCmd.AddCommand(branchCmd)
}

func runBranchCreate(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetString("from")
	noCheckout, _ := cmd.Flags().GetBool("no-checkout")
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	rp, err := e.openHere()
	if err != nil {
		fail(err)
	}
	if err := rp.CreateBranch(args[0], from, !noCheckout); err != nil {
		fail(err)
	}
}

func runBranchCheckout(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	rp, err := e.openHere()
	if err != nil {
		fail(err)
	}
	if err := rp.Checkout(args[0]); err != nil {
		fail(err)
	}
}

func runBranchLs(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	rp, err := e.openHere()
	if err != nil {
		fail(err)
	}
	branches, err := rp.Branches()
	if err != nil {
		fail(err)
	}
	for _, b := range branches {
		fmt.Println(b)
	}
}

func runBranchStatus(cmd *cobra.Command, args []string) {
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
	st, err := rp.State(active)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%s (%s)\n", active, st)
}

func runBranchHistory(cmd *cobra.Command, args []string) {
	showHashes, _ := cmd.Flags().GetBool("hashes")
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
	hist, err := rp.History(active)
	if err != nil {
		fail(err)
	}
	for i, h := range hist {
		if showHashes {
			fmt.Printf("%s\n", h)
		} else {
			fmt.Printf("%d: %s\n", len(hist)-i, h[:min(12, len(h))])
		}
	}
}

func runBranchMerge(cmd *cobra.Command, args []string) {
	abort, _ := cmd.Flags().GetBool("abort")
	resolve, _ := cmd.Flags().GetString("resolve")
	resolveSet := cmd.Flags().Changed("resolve")

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

	if abort {
		if err := rp.MergeAbort(active); err != nil {
			fail(err)
		}
		return
	}
	if resolveSet {
		if resolve == " " {
			resolve = ""
		}
		if err := rp.MergeResolve(context.Background(), active, resolve); err != nil {
			fail(err)
		}
		return
	}

	result, err := rp.Merge(context.Background(), active, args[0])
	if err != nil {
		fail(err)
	}
	switch {
	case result.FastForward:
		fmt.Println("fast-forward merge performed")
	case result.Conflicted:
		fmt.Fprintln(os.Stderr, "merge has conflicts, resolve and run `ipvc branch merge -r` or `-a` to abort")
		os.Exit(1)
	default:
		fmt.Println("merge commit created")
	}
}

func runBranchReplay(cmd *cobra.Command, args []string) {
	abort, _ := cmd.Flags().GetBool("abort")
	resume, _ := cmd.Flags().GetBool("resume")

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

	if abort {
		if err := rp.ReplayAbort(active); err != nil {
			fail(err)
		}
		return
	}

	var status replay.Status
	if resume {
		status, err = rp.ReplayResume(context.Background(), active)
	} else {
		status, err = rp.Replay(context.Background(), active, args[0])
	}
	if err != nil {
		fail(err)
	}
	if status == replay.ResumeRequired {
		fmt.Fprintln(os.Stderr, "replay has conflicts, resolve and run `ipvc branch replay -r` or `-a` to abort")
		os.Exit(1)
	}
	fmt.Println("replay complete")
}

func runBranchShow(cmd *cobra.Command, args []string) {
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
	result, err := rp.Show(active, args[0])
	if err != nil {
		fail(err)
	}
	if result.IsDir {
		for _, entry := range result.Entries {
			fmt.Println(entry.Name)
		}
		return
	}
	os.Stdout.Write(result.Content)
}
