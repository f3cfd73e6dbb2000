package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

// fileMode is the permission of the lock file.
const fileMode os.FileMode = 0o644

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// Lock is an acquired exclusive lock.
type Lock struct {
	path string
	file *os.File
}

// Holder describes the process recorded in a lock file.
type Holder struct {
	// PID of the recorded holder, zero when unknown.
	PID int
	// RunID of the recorded holder.
	RunID string
	// Executable is the process name if the PID is alive.
	Executable string
}

// String renders the holder for log lines and errors.
func (h Holder) String() string {
	if h.PID == 0 {
		return "unknown holder"
	}

	name := h.Executable
	if name == "" {
		name = "exited"
	}

	return fmt.Sprintf("pid %d (%s), run %s", h.PID, name, h.RunID)
}

// Acquire takes the lock at path without blocking. The run ID is recorded for diagnostics.
func Acquire(path, runID string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_RDWR, fileMode)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w: %s", path, ErrLocked, ReadHolder(path))
		}

		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	record := fmt.Sprintf("%d\n%s\n", os.Getpid(), runID)

	if err = file.Truncate(0); err == nil {
		_, err = file.WriteAt([]byte(record), 0)
	}

	if err != nil {
		_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
		_ = file.Close()

		return nil, fmt.Errorf("record lock holder: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release clears the holder record and unlocks. It is safe to call on nil.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	_ = l.file.Truncate(0)

	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	return errors.Join(unlockErr, closeErr)
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// ReadHolder reads the holder record of the lock file at path.
func ReadHolder(path string) Holder {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Holder{}
	}

	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")

	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Holder{}
	}

	holder := Holder{PID: pid}

	if len(lines) > 1 {
		holder.RunID = strings.TrimSpace(lines[1])
	}

	if process, findErr := ps.FindProcess(pid); findErr == nil && process != nil {
		holder.Executable = process.Executable()
	}

	return holder
}
