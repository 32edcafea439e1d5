package coordinator

import (
	"errors"
	"fmt"

	"github.com/roach88/remsync/internal/gateway"
	"github.com/roach88/remsync/internal/model"
)

// Operation names a coordinator operation.
type Operation string

const (
	OpCreate         Operation = "create"
	OpUpdate         Operation = "update"
	OpComplete       Operation = "complete"
	OpDelete         Operation = "delete"
	OpUpdateSettings Operation = "update_settings"
)

// MutationError reports a mutation whose remote call failed. Session state
// is unchanged when it is returned.
type MutationError struct {
	Op  Operation
	ID  model.ID
	Err error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the gateway error.
func (e *MutationError) Unwrap() error { return e.Err }

// ResyncError reports that a mutation committed but the Stats refresh that
// follows it failed. Stats may lag until the next successful resync.
type ResyncError struct {
	Op  Operation
	Err error
}

// Error implements the error interface.
func (e *ResyncError) Error() string {
	return fmt.Sprintf("%s committed, stats resync failed: %v", e.Op, e.Err)
}

// Unwrap returns the gateway error.
func (e *ResyncError) Unwrap() error { return e.Err }

// IsMutationError reports whether err is a failed, uncommitted mutation.
func IsMutationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}

// IsResyncError reports whether err is a failed Stats refresh after a
// committed mutation.
func IsResyncError(err error) bool {
	var re *ResyncError
	return errors.As(err, &re)
}

// IsNotFound reports whether the remote service did not know the reminder.
func IsNotFound(err error) bool {
	return gateway.IsNotFound(err)
}
