package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultDirectory holds the stable per-device symlinks created by udev.
	DefaultDirectory = "/dev/input/by-id"

	// DefaultRFIDPath is what the application falls back to without an RFID reader.
	DefaultRFIDPath = "/dev/input/event0"
	// DefaultBarcodePath is what the application falls back to without a scanner.
	DefaultBarcodePath = "/dev/input/event1"

	// keyboardSuffix selects keyboard-class event nodes; auxiliary nodes
	// such as "-event-if01" or "-event-mouse" are ignored.
	keyboardSuffix = "-event-kbd"
	usbPrefix      = "usb-"
)

// ErrNoDeviceDirectory is returned when the by-id directory does not exist.
var ErrNoDeviceDirectory = errors.New("input device directory not found")

// Detected is a keyboard-class device assigned to a category.
type Detected struct {
	// Name is the symlink name inside the scanned directory.
	Name string
	// Path is the absolute path of the symlink.
	Path string
	// Category is the assigned role.
	Category Category
	// Fallback is set when the device matched no keyword and was assigned provisionally.
	Fallback bool
}

// Result is the outcome of one discovery pass.
type Result struct {
	// Candidates lists every keyboard-class device that was considered.
	Candidates []string
	// RFID is the chosen RFID reader, if any.
	RFID *Detected
	// Barcode is the chosen barcode scanner, if any.
	Barcode *Detected
}

// Empty reports whether nothing was assigned.
func (r *Result) Empty() bool {
	return r.RFID == nil && r.Barcode == nil
}

// EnvLines renders the device settings the application expects in its .env,
// substituting the application defaults for missing devices.
func (r *Result) EnvLines() []string {
	rfid, barcode := DefaultRFIDPath, DefaultBarcodePath

	if r.RFID != nil {
		rfid = r.RFID.Path
	}

	if r.Barcode != nil {
		barcode = r.Barcode.Path
	}

	return []string{
		"RFID_DEVICE=" + rfid,
		"BARCODE_DEVICE=" + barcode,
	}
}

// Discover scans dir for keyboard-class USB devices and classifies them with table.
//
// The first RFID match and the first barcode match win. A device matching no
// category, or one whose category is already taken, becomes a provisional
// barcode scanner when none is assigned yet; a later explicit barcode match
// replaces the provisional one.
func Discover(dir string, table Table) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNoDeviceDirectory)
		}

		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if isKeyboard(entry.Name()) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	result := &Result{Candidates: names}

	for _, name := range names {
		detected := &Detected{
			Name: name,
			Path: filepath.Join(dir, name),
		}

		category, matched := table.Classify(name)

		// A surplus reader may still carry scanner keywords, e.g. "Barcode_Reader".
		if matched && category == CategoryRFID && result.RFID != nil && table.Matches(name, CategoryBarcode) {
			category = CategoryBarcode
		}

		switch {
		case matched && category == CategoryRFID && result.RFID == nil:
			detected.Category = CategoryRFID
			result.RFID = detected
		case matched && category == CategoryBarcode && (result.Barcode == nil || result.Barcode.Fallback):
			detected.Category = CategoryBarcode
			result.Barcode = detected
		case result.Barcode == nil:
			detected.Category = CategoryBarcode
			detected.Fallback = true
			result.Barcode = detected
		}
	}

	return result, nil
}

func isKeyboard(name string) bool {
	return strings.HasPrefix(name, usbPrefix) && strings.HasSuffix(name, keyboardSuffix)
}
