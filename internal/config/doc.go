// Package config defines the deployment settings shared by the provisioner
// and the updater and provides helpers to load, validate and save them in
// YAML format.
//
// A missing settings file is not an error: fresh hosts run on Default().
package config
