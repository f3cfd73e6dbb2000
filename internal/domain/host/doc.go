// Package host contains the core domain types of a kiosk deployment.
//
// It defines Revision (which snapshot of the application is deployed),
// Version (interpreter versions), Account (the service identity) and State,
// the in-memory HostState snapshot decisions are made from.
package host
