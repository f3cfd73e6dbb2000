// Package envfile reads and removes the kiosk application's .env file.
//
// The file is owned by the application's own first-run wizard; the
// orchestrator only inspects it (is the host configured?) and deletes it in
// reset mode.
package envfile
