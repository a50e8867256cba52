// Package bus owns the in-process typed message substrate.
//
// Ownership boundary:
// - message and response envelopes
// - message type registry and payload validation
// - per-module serial dispatch
// - scoped task execution off the dispatch path
//
// The bus does not own control decisions; modules do.
package bus
