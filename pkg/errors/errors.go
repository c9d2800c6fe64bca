package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable error identifier sent to clients.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeAmountMismatch    Code = "AMOUNT_MISMATCH"
	CodeOrderNotConfirmed Code = "ORDER_NOT_CONFIRMED"
	CodeNotPurchased      Code = "NOT_PURCHASED"
	CodeDuplicateReview   Code = "DUPLICATE_REVIEW"
)

type exposure uint8

const (
	exposeMessage exposure = 1 << iota
	exposeDetails
	retryable
)

type codeRule struct {
	status int
	public string
	flags  exposure
}

var rules = map[Code]codeRule{
	CodeValidation:        {http.StatusBadRequest, "validation failed", exposeMessage | exposeDetails},
	CodeUnauthorized:      {http.StatusUnauthorized, "authentication required", exposeMessage},
	CodeForbidden:         {http.StatusForbidden, "access denied", exposeMessage | exposeDetails},
	CodeNotFound:          {http.StatusNotFound, "resource not found", exposeMessage},
	CodeConflict:          {http.StatusConflict, "conflict detected", exposeMessage},
	CodeIdempotency:       {http.StatusConflict, "idempotency key reused", exposeMessage | exposeDetails},
	CodeRateLimit:         {http.StatusTooManyRequests, "rate limit exceeded", exposeMessage | exposeDetails},
	CodeInternal:          {http.StatusInternalServerError, "internal server error", retryable},
	CodeDependency:        {http.StatusServiceUnavailable, "dependency unavailable", retryable | exposeDetails},
	CodeInsufficientStock: {http.StatusConflict, "insufficient stock", exposeMessage | exposeDetails},
	CodeInvalidTransition: {http.StatusUnprocessableEntity, "invalid order status transition", exposeMessage | exposeDetails},
	CodeAmountMismatch:    {http.StatusUnprocessableEntity, "payment amount does not match order total", exposeMessage | exposeDetails},
	CodeOrderNotConfirmed: {http.StatusUnprocessableEntity, "order is not awaiting payment", exposeMessage | exposeDetails},
	CodeNotPurchased:      {http.StatusForbidden, "product has not been delivered to this buyer", exposeMessage},
	CodeDuplicateReview:   {http.StatusConflict, "product already reviewed", exposeMessage},
}

// Metadata describes how a code is rendered over HTTP. PublicMessage
// replaces the error's own message unless ExposeMessage is set.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

// MetadataFor returns the rendering rules for code. Unknown codes are
// treated as internal errors.
func MetadataFor(code Code) Metadata {
	rule, ok := rules[code]
	if !ok {
		rule = rules[CodeInternal]
	}
	return Metadata{
		HTTPStatus:     rule.status,
		Retryable:      rule.flags&retryable != 0,
		PublicMessage:  rule.public,
		ExposeMessage:  rule.flags&exposeMessage != 0,
		DetailsAllowed: rule.flags&exposeDetails != 0,
	}
}

// Error is a coded error with an optional cause and client-facing details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether a caller may retry the failed operation.
func IsRetryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.code).Retryable
}
