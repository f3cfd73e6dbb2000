// Package unit renders the managed service definition, the scheduled update
// trigger and the desktop autostart entry of the kiosk.
//
// Service and timer are systemd instance templates ("name@.service"), so one
// set of files serves any service user; the user is the instance name.
package unit
