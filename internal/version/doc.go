// Package version exposes build metadata for kasse-deploy.
//
// Version, Commit and BuildTime are injected via ldflags.
package version
