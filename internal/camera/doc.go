// Package camera owns per-device control.
//
// Ownership boundary:
// - the message-driven controller for one device
// - the camera message vocabulary and payload shapes
// - the device driver contract and the functionality handle
//
// The controller is the sole owner of its DeviceDriver; every other module
// reaches the device through bus messages only.
package camera
