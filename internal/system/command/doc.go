// Package command runs external tools on behalf of the system adapters.
//
// Runner is the seam the adapters are tested through: the Exec
// implementation shells out, tests substitute a recorder.
package command
