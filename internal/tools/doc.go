// Package tools provides the external toolchain boundary used by build
// step executors.
//
// Ownership boundary:
// - command execution helpers
//
// - executable discovery on PATH
package tools
