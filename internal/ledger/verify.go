package ledger

import (
	"fmt"

	"simrun/pkg/utils"
)

// VerifyChain re-computes each entry hash and link to detect tampering.
func (l *Ledger) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		h, err := e.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", e.Index, err)
		}
		if h != e.Hash {
			return fmt.Errorf("hash mismatch at index %d", e.Index)
		}
		if i > 0 && e.PrevHash != l.entries[i-1].Hash {
			return fmt.Errorf("prev hash mismatch at index %d", e.Index)
		}
		if i == 0 && e.PrevHash != "" {
			return fmt.Errorf("first entry has prev hash %q", e.PrevHash)
		}
		if e.Index != i {
			return fmt.Errorf("index mismatch: expected %d got %d", i, e.Index)
		}
	}
	return nil
}

// VerifyLogs re-hashes every referenced simulator log. resolve maps an
// entry's LogPath to a readable file path.
func (l *Ledger) VerifyLogs(resolve func(string) string) error {
	for _, e := range l.Entries() {
		if e.LogPath == "" || e.LogHash == "" {
			continue
		}
		path := resolve(e.LogPath)
		h, err := utils.HashFile(path)
		if err != nil {
			return fmt.Errorf("hash log of index %d: %w", e.Index, err)
		}
		if h != e.LogHash {
			return fmt.Errorf("log %s changed since index %d was recorded", path, e.Index)
		}
	}
	return nil
}
