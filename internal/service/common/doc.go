// Package common holds helpers shared by the provisioner, the updater and the
// status report.
//
// It defines the ports through which services touch the host (packages, source
// control, runtime environment, service supervisor, accounts), the Toolbox that
// wires the real adapters, and the shared preconditions: privilege checks, the
// interpreter version gate, the run lock and the host snapshot.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
