package monitor

import "fmt"

// ReorgedCursorError means the stored cursor's block is no longer on the
// canonical chain, i.e. a reorg deeper than the confirmation depth. The
// monitor cannot decide which emissions are still valid, so it stops and
// leaves the cursor untouched for operator intervention.
type ReorgedCursorError struct {
	Monitor string
	Cursor  TransactionLocation
	Cause   error
}

func (e *ReorgedCursorError) Error() string {
	return fmt.Sprintf("monitor %s: cursor block %s is not on the canonical chain: %v",
		e.Monitor, e.Cursor.BlockHash, e.Cause)
}

func (e *ReorgedCursorError) Unwrap() error {
	return e.Cause
}
