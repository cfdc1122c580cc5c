// Package daemon wires the engine, media catalog, history journal, updater
// and web dashboard together, and enforces single-instance execution via a
// lock file in the state directory.
package daemon
