package api

// dateTimeFormat renders timestamps with millisecond precision and an
// explicit zone offset so values survive a JSON round trip unchanged.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem is the wire form of a queue item.
type QueueItem struct {
	ID           int64  `json:"id"`
	Jurisdiction string `json:"jurisdiction"`
	OrgID        string `json:"orgId"`
	RecordID     string `json:"recordId"`
	Status       string `json:"status"`
	Priority     int    `json:"priority"`
	Window       string `json:"window,omitempty"`
	ScheduledAt  string `json:"scheduledAt,omitempty"`
	JobID        *int64 `json:"jobId,omitempty"`
	FailureCount int    `json:"failureCount"`
	NextRetryAt  string `json:"nextRetryAt,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Job is the wire form of a submission job.
type Job struct {
	ID           int64    `json:"id"`
	BatchID      string   `json:"batchId"`
	Jurisdiction string   `json:"jurisdiction"`
	OrgID        string   `json:"orgId"`
	RecordIDs    []string `json:"recordIds,omitempty"`
	RecordCount  int      `json:"recordCount"`
	Status       string   `json:"status"`
	SubmittedBy  string   `json:"submittedBy,omitempty"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	StartedAt    string   `json:"startedAt,omitempty"`
	CompletedAt  string   `json:"completedAt,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	RetryCount   int      `json:"retryCount"`
}

// Statistics is the wire form of a queue statistics snapshot.
type Statistics struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"byStatus"`
	ByJurisdiction map[string]int `json:"byJurisdiction"`
	ByPriority     map[string]int `json:"byPriority"`
	UrgentCount    int            `json:"urgentCount"`
	Outstanding    int            `json:"outstanding"`
	GeneratedAt    string         `json:"generatedAt"`
}

// PassSummary reports what a single scheduling pass did.
type PassSummary struct {
	UrgentProcessed   int      `json:"urgentProcessed"`
	UrgentJobsCreated int      `json:"urgentJobsCreated"`
	GroupsFound       int      `json:"groupsFound"`
	BatchesCreated    int      `json:"batchesCreated"`
	JobsCreated       int      `json:"jobsCreated"`
	JobIDs            []int64  `json:"jobIds,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

// RequeueSummary reports what a requeue sweep did.
type RequeueSummary struct {
	Requeued  int      `json:"requeued"`
	Cancelled int      `json:"cancelled"`
	Errors    []string `json:"errors,omitempty"`
}

// Health is the monitor health probe payload. Store is "ok" or the ping
// error text.
type Health struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
	Store   string `json:"store"`
}

// DaemonStatus describes a running (or stopped) daemon.
type DaemonStatus struct {
	Running       bool            `json:"running"`
	PID           int             `json:"pid"`
	StartedAt     string          `json:"startedAt,omitempty"`
	Backend       string          `json:"backend"`
	DatabasePath  string          `json:"databasePath,omitempty"`
	LockFilePath  string          `json:"lockFilePath,omitempty"`
	SocketPath    string          `json:"socketPath,omitempty"`
	LastPass      *PassSummary    `json:"lastPass,omitempty"`
	LastPassAt    string          `json:"lastPassAt,omitempty"`
	LastRequeue   *RequeueSummary `json:"lastRequeue,omitempty"`
	LastRequeueAt string          `json:"lastRequeueAt,omitempty"`
	Statistics    *Statistics     `json:"statistics,omitempty"`
}
