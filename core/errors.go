package core

import "github.com/pkg/errors"

// ErrConflict is returned by repositories when a compare-and-swap or unique-key write
// lost a race. The whole operation may be retried.
var ErrConflict = errors.New("concurrent update conflict")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError signals a missing referenced entity. Callers can recover from it,
// e.g. by prompting a re-enrollment.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

// PolicyError signals a business-rule rejection, not a system fault.
type PolicyError struct {
	Rule    string
	Message string
}

func NewPolicyError(rule, msg string) *PolicyError {
	return &PolicyError{Rule: rule, Message: msg}
}

func (err PolicyError) Error() string {
	return err.Message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsPolicyViolation(err error) bool {
	_, ok := errors.Cause(err).(*PolicyError)
	return ok
}

func IsConflict(err error) bool {
	return errors.Cause(err) == ErrConflict
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
