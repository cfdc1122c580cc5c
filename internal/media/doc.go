// Package media is the catalog over the frames and videos the daemon
// produces: validated name handling, listing, lookup, deletion and the
// merge-all operation.
package media
