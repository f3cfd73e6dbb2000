package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// CredentialKey holds the register API key written by the first-run setup.
const CredentialKey = "API_KEY"

// ErrNotFound is returned when the configuration file does not exist yet.
var ErrNotFound = errors.New("configuration file not found")

// File is the application configuration on disk.
type File struct {
	// path is the filesystem location of the .env file.
	path string
	// mu serialises access to the file.
	mu sync.Mutex
}

// New creates a File for path.
func New(path string) *File {
	return &File{path: filepath.Clean(path)}
}

// Path returns the location of the configuration file.
func (f *File) Path() string {
	return f.path
}

// Load parses the key-value pairs of the file.
func (f *File) Load() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := godotenv.Read(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read configuration: %w", err)
	}

	return values, nil
}

// Configured reports whether the first-run setup stored a non-empty credential.
func (f *File) Configured() (bool, error) {
	values, err := f.Load()
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return strings.TrimSpace(values[CredentialKey]) != "", nil
}

// Remove deletes the file and reports whether it existed. Missing files are not an error.
func (f *File) Remove() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("remove configuration: %w", err)
	}
}
