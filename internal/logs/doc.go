// Package logs reads the daemon log file with bounded memory.
//
// It supports negative offsets for "last N lines" reads and an optional
// wait for appended lines, which powers `docket logs --follow` both over
// the control socket and directly against the file. Callers supply a
// context so polling stops cleanly when the CLI exits.
package logs
