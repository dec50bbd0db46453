package repository

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSort = errors.New("invalid sort field or order")
	ErrLeadIDZero  = errors.New("lead id is required")
)

// PersistenceError reports a store failure; the enclosing transaction has been rolled back
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func newPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	var uce *UnknownContactError
	if errors.As(err, &uce) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// UnknownContactError reports an update entry whose id is not a contact of the lead
type UnknownContactError struct {
	Kind   string // email, phone
	ID     uint
	LeadID uint
}

func (e *UnknownContactError) Error() string {
	return fmt.Sprintf("%s %d does not belong to lead %d", e.Kind, e.ID, e.LeadID)
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func IsUnknownContactError(err error) bool {
	var uce *UnknownContactError
	return errors.As(err, &uce)
}
