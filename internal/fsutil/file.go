package fsutil

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	// Ensure SHA512 is available for checksum verification.
	_ "crypto/sha512"
)

const (
	// DirMode is used for directories created on the way to a managed file.
	DirMode os.FileMode = 0o755

	// ExecutableMode is used for installed binaries.
	ExecutableMode os.FileMode = 0o755

	// checksumFunction verifies replaced files.
	checksumFunction = crypto.SHA512
)

// WriteFile atomically replaces path with data and reports whether anything changed.
// Identical contents with the same mode are left untouched.
func WriteFile(path string, data []byte, mode os.FileMode) (bool, error) {
	path = filepath.Clean(path)

	current, err := os.ReadFile(path)

	switch {
	case err == nil:
		if bytes.Equal(current, data) && hasMode(path, mode) {
			return false, nil
		}
	case errors.Is(err, fs.ErrNotExist):
		if err = create(path, mode); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	hasher := checksumFunction.New()
	_, _ = hasher.Write(data)

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: mode,
		Checksum:   hasher.Sum(nil),
		Hash:       checksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return false, fmt.Errorf("replace %s: %w", path, err)
	}

	// go-update hides the replaced file when it cannot remove it.
	leftover := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".old")
	if _, statErr := os.Stat(leftover); statErr == nil {
		_ = os.Remove(leftover)
	}

	// The new file is created subject to umask.
	if err = os.Chmod(path, mode); err != nil {
		return true, fmt.Errorf("chmod %s: %w", path, err)
	}

	return true, nil
}

// InstallExecutable copies the binary at src to dst unless both are identical.
func InstallExecutable(src, dst string) (bool, error) {
	if sameFile(src, dst) {
		return false, nil
	}

	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return false, fmt.Errorf("read %s: %w", src, err)
	}

	return WriteFile(dst, data, ExecutableMode)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// create makes an empty target so it can be swapped atomically.
func create(path string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	return f.Close()
}

func hasMode(path string, mode os.FileMode) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().Perm() == mode.Perm()
}

func sameFile(a, b string) bool {
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}

	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}

	return os.SameFile(infoA, infoB)
}
