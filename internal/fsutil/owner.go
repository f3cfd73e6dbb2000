package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Chown changes the owner of root and everything below it without following symlinks.
func Chown(root string, uid, gid int) error {
	err := filepath.WalkDir(root, func(path string, _ fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		return os.Lchown(path, uid, gid)
	})
	if err != nil {
		return fmt.Errorf("chown %s: %w", root, err)
	}

	return nil
}
