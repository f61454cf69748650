// Command ipvc is the CLI surface for the ipvc-go version-control engine,
// grounded on the teacher's cmd/bd cobra+GroupID command tree.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/martinp-labs/ipvc/internal/config"
	"github.com/martinp-labs/ipvc/internal/ipvcerr"
	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/repo"
	"github.com/martinp-labs/ipvc/internal/sign/localsigner"
	"github.com/martinp-labs/ipvc/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ipvc",
	Short: "A content-addressed, peer-to-peer version-control engine",
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "repo", Title: "Repository commands:"},
		&cobra.Group{ID: "branch", Title: "Branch commands:"},
		&cobra.Group{ID: "stage", Title: "Stage commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles the object store and signing identity every command needs,
// built once per invocation from the user's config.
type env struct {
	s      *store.Store
	signer *localsigner.Signer
	cfg    config.Config
}

func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var backend store.Backend
	switch cfg.Backend {
	case "libsql":
		backend, err = store.OpenLibsql(filepath.Join(cfg.DataDir, "ipvc.db"))
	default:
		backend, err = store.OpenSqlite(filepath.Join(cfg.DataDir, "ipvc.db"))
	}
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	signer, err := localsigner.Load(cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}

	return &env{s: store.New(backend), signer: signer, cfg: cfg}, nil
}

// openHere discovers the repository enclosing cwd by walking up the
// filesystem tree looking for a known repo root, per the no_repo_here
// error taxonomy entry.
func (e *env) openHere() (*repo.Repo, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := e.findRepoRoot(cwd)
	if err != nil {
		return nil, err
	}
	return repo.Open(e.s, e.signer, root), nil
}

func (e *env) findRepoRoot(dir string) (string, error) {
	for {
		hex := layout.RepoHex(dir)
		if _, err := e.s.Stat(layout.RepoDir(hex)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ipvcerr.ErrNoRepoHere
		}
		dir = parent
	}
}

// fail prints err and exits 1, matching the exit-code taxonomy: all
// user-visible failures are recoverable errors (exit 1).
func fail(err error) {
	fmt.Fprintf(os.Stderr, "ipvc: error: %s (%s)\n", err, ipvcerr.Code(err))
	os.Exit(1)
}
