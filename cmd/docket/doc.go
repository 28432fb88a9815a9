// Package main hosts the docket CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into socket
// calls against the daemon, queue inspection and maintenance operations, and
// configuration scaffolding. It centralizes configuration resolution and
// socket discovery so subcommands can focus on user experience instead of
// wiring.
//
// Commands that drive the scheduler (pass, requeue) prefer the daemon socket
// so results land in the daemon's status view, and fall back to opening the
// store directly when no daemon is running. Read commands always go straight
// to the store; both backends tolerate concurrent readers.
package main
