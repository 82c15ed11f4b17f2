package service

import (
	"errors"
	"fmt"
	"strings"

	"inventory-service/internal/util"
)

var (
	ErrForbidden       = errors.New("only the store owner can perform this action")
	ErrLockUnavailable = errors.New("stock record is being updated by another request, try again")
)

// ValidationError rejects a request before anything is written
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DuplicateDeviceIDsError lists every offending identifier of a submission
type DuplicateDeviceIDsError struct {
	IDs []string
}

func (e *DuplicateDeviceIDsError) Error() string {
	return fmt.Sprintf("duplicate device IDs: %s", strings.Join(e.IDs, ", "))
}

// WriteFailure reports which storage step of an operation failed
type WriteFailure struct {
	Step string
	Err  error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Step, e.Err)
}

func (e *WriteFailure) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was raised by a pre-write check
func IsValidation(err error) bool {
	var ve *ValidationError
	var de *DuplicateDeviceIDsError
	return errors.As(err, &ve) || errors.As(err, &de)
}

func reject(reason, format string, args ...interface{}) error {
	util.ValidationRejectionsTotal.WithLabelValues(reason).Inc()
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func writeFailure(step string, err error) error {
	util.WriteFailuresTotal.WithLabelValues(step).Inc()
	return &WriteFailure{Step: step, Err: err}
}
