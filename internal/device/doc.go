// Package device classifies USB HID keyboard-class input devices exposed
// under /dev/input/by-id into RFID readers and barcode scanners.
//
// Classification is driven by a declarative Table of category keyword sets.
// Discovery is advisory: it never persists anything, it only reports which
// stable device paths the application should be configured with.
package device
