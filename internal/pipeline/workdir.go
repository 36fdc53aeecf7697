package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// workdirArena hands out per-record working directories under a common
// temp root. Each directory is owned exclusively by the running job and
// reclaimed on its terminal transition; record ids are sanitized so an
// opaque id can never escape the root.
type workdirArena struct {
	root string
}

var unsafePathChars = strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")

func (a workdirArena) create(recordID string) (string, error) {
	dir := filepath.Join(a.root, unsafePathChars.Replace(recordID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}
	return dir, nil
}

func (a workdirArena) remove(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
