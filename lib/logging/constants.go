package logging

// Common zerolog field keys used throughout the application
const (
	FieldAgencyID     = "agency_id"
	FieldCaseWorkerID = "case_worker_id"
	FieldError        = "error"
	FieldErrorID      = "error_id"
	FieldResourceType = "resource_type"
	FieldStatus       = "status"
	FieldSubject      = "subject"
	FieldUrl          = "url"
)
