package host

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// errInvalidVersion is returned when a version string cannot be parsed.
var errInvalidVersion = errors.New("invalid version")

// Version is a dotted major.minor.patch interpreter version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion accepts "3.11", "3.11.2" and interpreter banners such as "Python 3.11.2".
func ParseVersion(raw string) (Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Version{}, fmt.Errorf("%q: %w", raw, errInvalidVersion)
	}

	// The version is the last word of a banner.
	parts := strings.Split(fields[len(fields)-1], ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("%q: %w", raw, errInvalidVersion)
	}

	numbers := make([]int, 3)

	for i, part := range parts {
		// Only the last component may carry a suffix such as "0rc1".
		digits := leadingDigits(part)
		if digits == "" || (i < len(parts)-1 && digits != part) {
			return Version{}, fmt.Errorf("%q: %w", raw, errInvalidVersion)
		}

		n, err := strconv.Atoi(digits)
		if err != nil {
			return Version{}, fmt.Errorf("%q: %w", raw, errInvalidVersion)
		}

		numbers[i] = n
	}

	return Version{Major: numbers[0], Minor: numbers[1], Patch: numbers[2]}, nil
}

// AtLeast reports whether v is the same as or newer than minimum.
func (v Version) AtLeast(minimum Version) bool {
	if v.Major != minimum.Major {
		return v.Major > minimum.Major
	}

	if v.Minor != minimum.Minor {
		return v.Minor > minimum.Minor
	}

	return v.Patch >= minimum.Patch
}

// String renders the version as major.minor.patch.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	return s[:end]
}
