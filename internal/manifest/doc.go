// Package manifest owns the typed model of a locutus.toml build manifest.
//
// Ownership boundary:
// - TOML text to generic key/value tree
//
// - typed contract/webapp/state sections with defaults filled
//
// - cross-section validation, reported as one batch
//
// Defaults are resolved here and nowhere else; the plan resolver and the
// executors consume a fully populated Manifest.
package manifest
