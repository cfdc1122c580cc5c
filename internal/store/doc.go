// Package store persists the encode/failure history journal to SQLite. The
// journal feeds the dashboard and CLI history views; it is never consulted
// for engine decisions.
package store
