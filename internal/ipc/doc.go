// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket
// in the state directory. The plantcam CLI is the primary consumer.
package ipc
