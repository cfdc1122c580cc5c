// Package main hosts the plantcam CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against plantcamd: status, manual capture and conversion, video catalog
// maintenance, history queries, notification testing, and configuration
// scaffolding. It centralizes configuration resolution and socket discovery
// so subcommands can focus on output rendering.
package main
