package config

import "fmt"

type WorkerKeyStruct struct {
	StatusScheduler  string
	SessionFinalizer string
	// FinalizerLock is held in Redis for the duration of one sweep so that
	// replicas do not sweep the same sessions at the same time.
	FinalizerLock string
}

// BoundaryTimerKey returns the deterministic key of an exam boundary timer.
// Scheduling under an existing key replaces the pending timer.
func (w *WorkerKeyStruct) BoundaryTimerKey(examID string, boundary string) string {
	return fmt.Sprintf("exam_%s_%s", examID, boundary)
}

var WorkerKey = &WorkerKeyStruct{
	StatusScheduler:  "status_scheduler",
	SessionFinalizer: "session_finalizer",
	FinalizerLock:    "lock:session_finalizer",
}
