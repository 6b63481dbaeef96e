package importer

import "fmt"

// The import pipeline classifies failures into four categories. Input and
// load errors abort before any merge is attempted; merge errors abort the
// (transactional) merge; restore errors are reported on the run result
// instead of masking the primary outcome.

// InputError reports a missing or malformed input file. Not retryable
// without operator correction.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input file %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// LoadError reports a bulk load rejected by the store. Retry-safe: staging
// is cleared by batch ID before every reload.
type LoadError struct {
	BatchID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("bulk load for batch %s: %v", e.BatchID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MergeError reports a failed insert/update reconciliation. The merge runs
// as a single transaction, so no partial state is left behind and the batch
// is retry-safe.
type MergeError struct {
	BatchID string
	Err     error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge for batch %s: %v", e.BatchID, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// RestoreError reports a failure while re-enabling relaxed engine settings.
// It is never raised in place of the batch outcome: the orchestrator logs it
// loudly and flags the run as degraded, because the store may be left with
// safety checks disabled until an operator intervenes.
type RestoreError struct {
	Err error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore engine settings: %v", e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }
