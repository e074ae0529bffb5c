package engine

import "fmt"

// ValidationError rejects a draft before it ever reaches WAITING.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InconsistentStateError reports an order that arrived at the matcher with a
// violated invariant (filled > size, or a status outside the expected set).
// This indicates a defect elsewhere and is surfaced, never silently repaired.
type InconsistentStateError struct {
	OrderID string
	Status  OrderStatus
	Filled  int64
	Size    int64
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent order state: id=%s status=%s filled=%d size=%d",
		e.OrderID, e.Status, e.Filled, e.Size)
}
