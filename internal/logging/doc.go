// Package logging configures the process-wide structured logger and
// provides attribute helpers shared across docket components.
package logging
