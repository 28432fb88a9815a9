// Package daemon runs the long-lived docketd process: it holds the
// single-instance lock, drives the scheduling and requeue loops, and
// serves the monitor HTTP endpoints. The IPC socket server lives in the
// ipc package and calls back into Daemon.
package daemon
