// Package executor runs build plan steps against their external toolchains.
//
// Ownership boundary:
// - one executor per step kind (compile-contract, build-webapp, package-state)
//
// - toolchain discovery and invocation through tools.CommandRunner
//
// - scratch outputs handed to the packager as Artifacts
//
// Executors never write to the final output directory; the packager owns
// that move.
package executor
