package services

import (
	"errors"
	"fmt"
	"strconv"
)

// Code is a machine-readable error kind
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeInvalidState       Code = "invalid_state"
	CodeNotParticipant     Code = "not_participant"
	CodeOnCooldown         Code = "on_cooldown"
	CodeCapacityExceeded   Code = "capacity_exceeded"
	CodeRequirementsNotMet Code = "requirements_not_met"
	CodeUnknownPowerUp     Code = "unknown_power_up"
	CodeRegistrationClosed Code = "registration_closed"
	CodeInvalidArgument    Code = "invalid_argument"
)

// Error is the domain error returned by every service operation.
// Two errors are equal under errors.Is when their codes match.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks. Several share a code on purpose: AlreadyStarted
// and NotActive are both invalid_state.
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidState       = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrAlreadyStarted     = &Error{Code: CodeInvalidState, Message: "battle already started"}
	ErrNotActive          = &Error{Code: CodeInvalidState, Message: "battle is not active"}
	ErrFull               = &Error{Code: CodeCapacityExceeded, Message: "battle is full"}
	ErrCapacityExceeded   = &Error{Code: CodeCapacityExceeded, Message: "capacity exceeded"}
	ErrNotParticipant     = &Error{Code: CodeNotParticipant, Message: "not a participant"}
	ErrUnknownPowerUp     = &Error{Code: CodeUnknownPowerUp, Message: "unknown power-up"}
	ErrOnCooldown         = &Error{Code: CodeOnCooldown, Message: "power-up on cooldown"}
	ErrRegistrationClosed = &Error{Code: CodeRegistrationClosed, Message: "registration closed"}
	ErrRequirementsNotMet = &Error{Code: CodeRequirementsNotMet, Message: "requirements not met"}
	ErrInvalidArgument    = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
)

func notFound(kind, id string) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s %s not found", kind, id),
		Metadata: map[string]string{"kind": kind, "id": id},
	}
}

func cooldownError(powerUpID string, remaining int) *Error {
	unit := "rounds"
	if remaining == 1 {
		unit = "round"
	}
	return &Error{
		Code:    CodeOnCooldown,
		Message: fmt.Sprintf("power-up %s on cooldown for %d more %s", powerUpID, remaining, unit),
		Metadata: map[string]string{
			"power_up_id":      powerUpID,
			"remaining_rounds": strconv.Itoa(remaining),
		},
	}
}

// CodeOf extracts the domain code from err, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
