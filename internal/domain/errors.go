package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrGateway          = errors.New("gateway failure")
	ErrNotFoundInMode   = errors.New("not found in current gateway mode")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrMissingSecret    = errors.New("webhook secret not configured")
	ErrPersistence      = errors.New("persistence failure")
	ErrDuplicateEvent   = errors.New("duplicate event")
	ErrLeaseHeld        = errors.New("lease held by another worker")
	ErrNotYetAvailable  = errors.New("not yet available")
	ErrFeatureDisabled  = errors.New("feature disabled")
)

// ValidationError carries donor-facing messages. They are shown verbatim.
type ValidationError struct {
	Messages []string
}

func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

// GatewayError describes a failed remote call. NotFound marks an id that
// does not exist in the current mode.
type GatewayError struct {
	Op         string
	HTTPStatus int
	Code       string
	Message    string
	NotFound   bool
	Err        error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("gateway %s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, msg)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool {
	switch target {
	case ErrGateway:
		return true
	case ErrNotFoundInMode:
		return e.NotFound
	}
	return false
}

// IsNotFoundInMode reports whether err means "valid id, other mode".
func IsNotFoundInMode(err error) bool {
	return errors.Is(err, ErrNotFoundInMode)
}
