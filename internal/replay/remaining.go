package replay

import (
	"strings"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/store"
)

// writeRemaining persists the not-yet-replayed commit hashes (oldest first)
// so Resume can pick up where Start/replayFrom left off.
func writeRemaining(s *store.Store, repoHex, branch string, remaining []string) error {
	return writeRemainingList(s, layout.BranchInfo(repoHex, branch, "replay_remaining"), remaining)
}

func readRemaining(s *store.Store, repoHex, branch string) ([]string, error) {
	return readRemainingList(s, layout.BranchInfo(repoHex, branch, "replay_remaining"))
}

func writeRemainingList(s *store.Store, path string, items []string) error {
	return s.Write(path, []byte(strings.Join(items, "\n")), true, true)
}

func readRemainingList(s *store.Store, path string) ([]string, error) {
	data, err := s.Read(path)
	if err == store.ErrNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}
