// Package billingerr defines the error kinds returned by the billing engine.
//
// Domain packages declare coded sentinels with the constructors below, so a
// caller can match either the precise condition (errors.Is(err,
// sovdomain.ErrDuplicateItemNumber)) or its kind (errors.Is(err,
// billingerr.ErrValidation)).
package billingerr

import "errors"

var (
	ErrValidation        = errors.New("validation_error")
	ErrInvalidState      = errors.New("invalid_state")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrReferencedEntity  = errors.New("referenced_entity")
	ErrNotFound          = errors.New("not_found")
)

// Error is a coded billing error of a given kind.
type Error struct {
	Kind  error
	Code  string
	Field string
}

func (e *Error) Error() string {
	return e.Code
}

// Is matches both the kind and other errors carrying the same code.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind && other.Code == e.Code
	}
	return false
}

// Validation returns a coded validation error for field.
func Validation(code, field string) *Error {
	return &Error{Kind: ErrValidation, Code: code, Field: field}
}

// InvalidState returns a coded invalid-state error.
func InvalidState(code string) *Error {
	return &Error{Kind: ErrInvalidState, Code: code}
}

// InvalidTransition returns a coded invalid-transition error.
func InvalidTransition(code string) *Error {
	return &Error{Kind: ErrInvalidTransition, Code: code}
}

// Referenced returns a coded referenced-entity error.
func Referenced(code string) *Error {
	return &Error{Kind: ErrReferencedEntity, Code: code}
}

// NotFound returns a coded not-found error.
func NotFound(code string) *Error {
	return &Error{Kind: ErrNotFound, Code: code}
}

// Kind returns the kind of err, or nil when err is not a billing error.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrInvalidState, ErrInvalidTransition, ErrReferencedEntity, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Field returns the offending field of a validation error, if any.
func Field(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// Code returns the code of a billing error, or the error text otherwise.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return err.Error()
}
