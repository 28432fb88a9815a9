package ipc

import "docket/internal/api"

// Each method gets a dedicated request/reply pair so fields can grow
// without breaking older clients.

type StatusRequest struct{}

type StatusReply struct {
	Status api.DaemonStatus `json:"status"`
}

type RunPassRequest struct {
	// SubmittedBy overrides the configured submitter identity when non-empty.
	SubmittedBy string `json:"submittedBy"`
}

type RunPassReply struct {
	Pass api.PassSummary `json:"pass"`
}

type RequeueRequest struct{}

type RequeueReply struct {
	Requeue api.RequeueSummary `json:"requeue"`
}

type StopRequest struct{}

type StopReply struct {
	Stopping bool `json:"stopping"`
}

// LogTailRequest mirrors logs.TailOptions; WaitMillis is capped server
// side so a slow client cannot pin a handler goroutine.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	WaitMillis int   `json:"waitMillis"`
}

type LogTailReply struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
