// Package engine decides which lifecycle actions a reconciliation pass must
// perform for the managed server.
//
// The engine is a pure function from (flags, configuration snapshot,
// observations) to an ordered Plan. It performs no I/O. Each Action carries the
// flag deltas that the driver commits once that action has succeeded, so a
// failed action never leaves a flag claiming work that did not happen.
//
// A pass evaluates a fixed handler table in order against a pass-local copy
// of the flags:
//
//	install      !installed
//	upgrade      trigger == upgrade && installed
//	reconfigure  installed && config changed && properties not yet rendered
//	start        installed && (!started || reconfigured)
//
// Deltas produced by one handler are visible to the handlers after it, which
// is how a first pass can install and then attempt a start.
package engine
