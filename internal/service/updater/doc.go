// Package updater advances a provisioned host to the head of its tracked branch.
//
// It fetches the remote without touching the running kiosk, and only when the
// remote revision differs from the checked-out one it hard-resets the working
// tree, refreshes dependencies, restores ownership and restarts the service
// once. An unreachable remote or a concurrent run ends the run successfully
// without changes. A failure after the reset is not rolled back.
package updater
