package util

import (
	"os"
	"path/filepath"
)

// FindGitRoot walks up from start looking for a .git directory. Returns
// start unchanged if none is found.
func FindGitRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for cur := dir; ; {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root
			return dir, nil
		}
		cur = parent
	}
}
