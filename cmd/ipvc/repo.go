package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/martinp-labs/ipvc/internal/repo"
)

var repoCmd = &cobra.Command{
	Use:     "repo",
	Short:   "Manage ipvc repositories",
	GroupID: "repo",
}

var repoInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a repository rooted at the current directory",
	Run:   runRepoInit,
}

var repoLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every repository ipvc knows about",
	Run:   runRepoLs,
}

var repoRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Forget a repository",
	Run:   runRepoRm,
}

var repoMvCmd = &cobra.Command{
	Use:   "mv P1 [P2]",
	Short: "Move (rename) a repository's tracked root path",
	Args:  cobra.RangeArgs(1, 2),
	Run:   runRepoMv,
}

var repoIdCmd = &cobra.Command{
	Use:   "id [KEY]",
	Short: "Get or set the repository's signing key id",
	Args:  cobra.MaximumNArgs(1),
	Run:   runRepoId,
}

var repoNameCmd = &cobra.Command{
	Use:   "name [N]",
	Short: "Get or set the repository's display name",
	Args:  cobra.MaximumNArgs(1),
	Run:   runRepoName,
}

var repoPublishCmd = &cobra.Command{
	Use:   "publish [BRANCH]",
	Short: "Stage a branch's current head for publication under this repo's key",
	Args:  cobra.MaximumNArgs(1),
	Run:   runRepoPublish,
}

func init() {
	repoInitCmd.Flags().String("name", "", "display name for the new repository")
	repoRmCmd.Flags().String("path", "", "repository path to forget (defaults to cwd)")

	repoCmd.AddCommand(repoInitCmd, repoLsCmd, repoRmCmd, repoMvCmd, repoIdCmd, repoNameCmd, repoPublishCmd)
	rootCmd.AddCommand(repoCmd)
}

func runRepoInit(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		fail(err)
	}
	if _, err := repo.Init(e.s, e.signer, cwd, name); err != nil {
		fail(err)
	}
	fmt.Printf("Initialized empty ipvc repository in %s\n", cwd)
}

func runRepoLs(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	repos, err := repo.List(e.s)
	if err != nil {
		fail(err)
	}
	for _, r := range repos {
		if r.Name != "" {
			fmt.Printf("%s\t%s\t%s\n", r.Name, r.Hex, r.Path)
		} else {
			fmt.Printf("%s\t%s\n", r.Hex, r.Path)
		}
	}
}

func runRepoRm(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("path")
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fail(err)
		}
		path = cwd
	}
	if err := repo.Remove(e.s, path); err != nil {
		fail(err)
	}
}

func runRepoMv(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	from := args[0]
	to := from
	if len(args) == 2 {
		to = args[1]
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fail(err)
		}
		to = cwd
	}
	from, _ = filepath.Abs(from)
	to, _ = filepath.Abs(to)
	if err := repo.Move(e.s, from, to); err != nil {
		fail(err)
	}
}

func runRepoId(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	rp, err := e.openHere()
	if err != nil {
		fail(err)
	}
	if len(args) == 0 {
		id, err := rp.RepoID()
		if err != nil {
			fail(err)
		}
		fmt.Println(id)
		return
	}
	if err := rp.SetRepoID(args[0]); err != nil {
		fail(err)
	}
}

func runRepoName(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	rp, err := e.openHere()
	if err != nil {
		fail(err)
	}
	if len(args) == 0 {
		name, err := rp.RepoName()
		if err != nil {
			fail(err)
		}
		fmt.Println(name)
		return
	}
	if err := rp.SetRepoName(args[0]); err != nil {
		fail(err)
	}
}

func runRepoPublish(cmd *cobra.Command, args []string) {
	e, err := newEnv()
	if err != nil {
		fail(err)
	}
	rp, err := e.openHere()
	if err != nil {
		fail(err)
	}
	branch := ""
	if len(args) == 1 {
		branch = args[0]
	} else {
		branch, err = rp.ActiveBranch()
		if err != nil {
			fail(err)
		}
	}
	result, err := rp.PublishBranch(branch)
	if err != nil {
		fail(err)
	}
	if result.Changed {
		fmt.Printf("published %s at %s\n", branch, result.Hash)
	} else {
		fmt.Printf("%s already up to date at %s\n", branch, result.Hash)
	}
}
