package pipeline

import "fmt"

// ValidationError reports a malformed inbound event. Events failing
// validation are never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// PersistenceError reports that the event store rejected the write.
// Fatal to the single ingestion attempt it occurred in.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist event: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
