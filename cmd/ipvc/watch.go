package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/martinp-labs/ipvc/internal/workspace"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run `stage add` when an entry directly in the repo root changes",
	Run:   runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	rp, err := e.openHere()
	if err != nil {
		fail(err)
	}

	w, err := workspace.NewWatcher(rp.RepoRoot)
	if err != nil {
		fail(err)
	}
	defer w.Close()

	debounce := time.Duration(e.cfg.WatchDebounceMillis) * time.Millisecond
	var last time.Time

	fmt.Printf("watching %s (debounce %s)\n", rp.RepoRoot, debounce)
	w.Run(func() {
		if time.Since(last) < debounce {
			return
		}
		last = time.Now()

		active, err := rp.ActiveBranch()
		if err != nil {
			fmt.Printf("watch: %v\n", err)
			return
		}
		if _, err := rp.StageAdd(active); err != nil {
			fmt.Printf("watch: stage add: %v\n", err)
			return
		}
		fmt.Println("synced")
	})
}
