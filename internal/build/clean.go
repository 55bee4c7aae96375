package build

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sentinel is kept by Clean so the directory stays in version control.
const Sentinel = ".gitkeep"

// Clean empties dir, keeping only the sentinel file. A missing dir is
// not an error, so cleaning twice is fine.
func Clean(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.Name() == Sentinel {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Remove deletes dir entirely.
func Remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}
