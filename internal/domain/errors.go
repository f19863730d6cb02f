package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Internal reason codes attached to errors for auditing. Clients only ever
// see the generic message and status code.
const (
	ReasonInvalidSignature = "invalid-signature"
	ReasonExpiredToken     = "expired"
	ReasonMalformedToken   = "malformed"
	ReasonBadSignature     = "bad-signature"
	ReasonUnknownBinding   = "unknown-binding"
	ReasonRevokedBinding   = "revoked-binding"
	ReasonAmbiguousCred    = "ambiguous-credential"
	ReasonMissingCred      = "missing-credential"
	ReasonNonceMismatch    = "nonce-mismatch"
	ReasonGroupScope       = "group-scope-violation"
	ReasonAlreadyClaimed   = "already-claimed"
	ReasonBindingRace      = "binding-race"
	ReasonRequestExpired   = "request-expired"
	ReasonLimitExceeded    = "limit-exceeded"
)

// AppError is a structured application error with HTTP status code.
// Reason is an internal audit code and is never serialized to clients.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Reason  string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrUnauthorized(reason string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: "unauthorized", Reason: reason}
}

func ErrForbidden(reason string) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: "forbidden", Reason: reason}
}

func ErrConflict(msg, reason string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg, Reason: reason}
}

func ErrExpired(msg string) *AppError {
	return &AppError{Code: http.StatusGone, Message: msg, Reason: ReasonRequestExpired}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// ErrLimitExceeded reports a tier ceiling hit for one resource kind.
func ErrLimitExceeded(kind ResourceKind, current, limit int) *AppError {
	return &AppError{
		Code:    http.StatusPaymentRequired,
		Message: fmt.Sprintf("%s limit exceeded: %d/%d, upgrade your plan to raise it", kind, current, limit),
		Reason:  ReasonLimitExceeded,
	}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
