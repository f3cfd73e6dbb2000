// Package fsutil holds filesystem helpers used while provisioning: atomic
// replacement of managed files and recursive ownership changes.
package fsutil
