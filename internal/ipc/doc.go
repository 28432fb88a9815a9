// Package ipc exposes the daemon over a unix socket using JSON-RPC 1.0.
// The service name is Docket; the CLI is the only intended client. The
// wire payloads are the api package types, so socket consumers and the
// monitor HTTP surface see identical JSON.
package ipc
