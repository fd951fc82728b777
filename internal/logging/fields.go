package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for run identifiers.
	FieldRunID = "run_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldState is the standardized structured logging key for FSM state names.
	FieldState = "state"
	// FieldProducer is the standardized structured logging key for asset producer names.
	FieldProducer = "producer"
	// FieldEventType tags log lines with a machine-readable event classification.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested operator next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldAttempt is the standardized structured logging key for retry attempt counts.
	FieldAttempt = "attempt"
)
