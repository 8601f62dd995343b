package pipeline

import "fmt"

// Failure kinds inside a run. All of them are contained: recorded on the
// run's stats and never re-thrown, so a single bad page or batch cannot
// halt the remaining work.

// RegistryError marks a failed upstream fetch for one page.
type RegistryError struct {
	Page int
	Err  error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("page %d fetch error: %v", e.Page, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// PersistenceError marks a failed store operation. BatchSize or FHRSID is
// set when known so the log entry is enough to reconcile manually.
type PersistenceError struct {
	Op        string
	FHRSID    int64
	BatchSize int
	Err       error
}

func (e *PersistenceError) Error() string {
	switch {
	case e.BatchSize > 0:
		return fmt.Sprintf("%s error (%d rows): %v", e.Op, e.BatchSize, e.Err)
	case e.FHRSID > 0:
		return fmt.Sprintf("%s error FHRSID %d: %v", e.Op, e.FHRSID, e.Err)
	default:
		return fmt.Sprintf("%s error: %v", e.Op, e.Err)
	}
}

func (e *PersistenceError) Unwrap() error { return e.Err }
