// Package lock provides the host-wide mutual exclusion shared by the
// provisioner and the updater.
//
// The lock is an flock(2) on a well-known file, so it is released by the
// kernel when the holder dies and stale lock files never block a later run.
// The file records the holder's PID and run ID for diagnostics.
package lock
