package engine

import (
	"errors"
	"fmt"

	"gigline/internal/attach"
)

// ValidationError is an input problem detected before any state is read.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// TransitionError reports an action the lifecycle does not allow from the
// entity's current status.
type TransitionError struct {
	Entity string
	From   string
	Action string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Action, e.Entity, e.From)
}

// InsufficientCreditsError means the payer's wallet cannot cover the amount.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// ContractGateError means the contract's state forbids the action.
type ContractGateError struct {
	ContractID int64
	Reason     string
}

func (e ContractGateError) Error() string {
	return fmt.Sprintf("contract %d: %s", e.ContractID, e.Reason)
}

// uploadError reports a rejected upload against field. Oversize files keep
// their attach.TooLargeError so callers can tell them apart.
func uploadError(field string, err error) error {
	var tle attach.TooLargeError
	if errors.As(err, &tle) {
		return tle
	}
	return ValidationError{Field: field, Reason: err.Error()}
}
