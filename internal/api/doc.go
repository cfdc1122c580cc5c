// Package api holds the wire DTOs shared by the HTTP status endpoint, the
// IPC surface and the CLI.
package api
