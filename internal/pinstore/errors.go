package pinstore

import "fmt"

// WriteError reports a failed add, update or delete. The live subscription is
// unaffected by it.
type WriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("pin %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pin %s %s failed: %v", e.Op, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// SubscriptionError reports a failure of the live view itself, such as a
// dropped change feed or a revoked read permission.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("pin subscription: %v", e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
