// Package build owns one build invocation end to end.
//
// Ownership boundary:
// - manifest load and validation before any process starts
//
// - concurrent execution of independent steps
//
// - the package-state barrier and final assembly
//
// Lifecycle order:
// - load -> resolve -> independent steps -> package-state -> assemble
//
// A failed step never cancels its siblings; it only prevents the steps
// that depend on it.
package build
