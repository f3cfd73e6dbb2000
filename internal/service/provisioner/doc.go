// Package provisioner brings a fresh host to a runnable kiosk installation.
//
// A run checks privileges, the service account and the interpreter version,
// takes the shared run lock, then walks an ordered list of idempotent steps:
// system packages, application source, runtime environment, dependencies,
// ownership, the orchestrator binary, the service unit, the update timer,
// device discovery, the desktop autostart entry and, on request, the removal
// of the application configuration. Any failing step aborts the run; re-running
// resumes where the host left off.
package provisioner
