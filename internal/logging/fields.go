package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for queue item identifiers.
	FieldItemID = "item_id"
	// FieldJobID is the standardized structured logging key for submission job identifiers.
	FieldJobID = "job_id"
	// FieldBatchID is the standardized structured logging key for batch identifiers.
	FieldBatchID = "batch_id"
	// FieldJurisdiction is the standardized structured logging key for jurisdiction codes.
	FieldJurisdiction = "jurisdiction"
	// FieldOrgID is the standardized structured logging key for organization identifiers.
	FieldOrgID = "org_id"
	// FieldWindow is the standardized structured logging key for submission windows.
	FieldWindow = "window"
	// FieldPriority is the standardized structured logging key for item priorities.
	FieldPriority = "priority"
	// FieldCount is the standardized structured logging key for record counts.
	FieldCount = "count"
	// FieldBackend is the standardized structured logging key for the store backend name.
	FieldBackend = "backend"
)
