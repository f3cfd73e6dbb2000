package host

import "strings"

// shortRevisionLength is the length of abbreviated revisions in log output.
const shortRevisionLength = 8

// Revision is an opaque version-control head reference.
type Revision string

// NewRevision trims command output into a Revision.
func NewRevision(raw string) Revision {
	return Revision(strings.TrimSpace(raw))
}

// IsZero reports whether the revision is unknown.
func (r Revision) IsZero() bool {
	return r == ""
}

// Short returns the abbreviated revision used in log lines.
func (r Revision) Short() string {
	if len(r) <= shortRevisionLength {
		return string(r)
	}

	return string(r[:shortRevisionLength])
}

// String implements fmt.Stringer.
func (r Revision) String() string {
	return string(r)
}
