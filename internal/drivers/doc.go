// Package drivers owns device driver construction.
//
// Ownership boundary:
// - driver factory registry keyed by stable id
// - the simulated driver used by the binary and tests
//
// Driver selection is explicit dependency injection: configuration names a
// driver id, the registry resolves it to a factory, and the controller is
// handed an already-built DeviceDriver.
package drivers
