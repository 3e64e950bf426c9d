// Package errors provides structured error types for gatewright.
package errors

import (
	"encoding/json"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for gatewright.
const (
	// Policy document errors
	CodePolicyMissing   Code = "POLICY_MISSING"
	CodePolicyInvalid   Code = "POLICY_INVALID"
	CodePolicyTransient Code = "POLICY_TRANSIENT"

	// Rule document errors
	CodeRuleMissing       Code = "RULE_MISSING"
	CodeRuleSchemaInvalid Code = "RULE_SCHEMA_INVALID"

	// Gate configuration errors
	CodeDuplicateGateID Code = "DUPLICATE_GATE_ID"

	// Lifecycle errors
	CodeAmbiguousRerunPR Code = "AMBIGUOUS_RERUN_PR"
	CodeStaleEvent       Code = "STALE_EVENT"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigMissing Code = "CONFIG_MISSING"

	// Forge errors
	CodeForgeAuth        Code = "FORGE_AUTH_FAILED"
	CodeForgeUnavailable Code = "FORGE_UNAVAILABLE"

	// Workflow errors
	CodeWorkflowUnknown Code = "WORKFLOW_UNKNOWN"
	CodeWorkflowTimeout Code = "WORKFLOW_TIMEOUT"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
	CategoryTimeout
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodePolicyMissing:     CategoryNotFound,
	CodePolicyInvalid:     CategoryBadRequest,
	CodePolicyTransient:   CategoryUnavailable,
	CodeRuleMissing:       CategoryNotFound,
	CodeRuleSchemaInvalid: CategoryBadRequest,
	CodeDuplicateGateID:   CategoryBadRequest,
	CodeAmbiguousRerunPR:  CategoryConflict,
	CodeStaleEvent:        CategoryConflict,
	CodeConfigInvalid:     CategoryBadRequest,
	CodeConfigMissing:     CategoryBadRequest,
	CodeForgeAuth:         CategoryUnknown,
	CodeForgeUnavailable:  CategoryUnavailable,
	CodeWorkflowUnknown:   CategoryBadRequest,
	CodeWorkflowTimeout:   CategoryTimeout,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	case CategoryTimeout:
		return 504
	case CategoryUnavailable:
		return 503
	default:
		return 500
	}
}

// Error is the structured error type for gatewright.
type Error struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// New creates a structured error.
func New(code Code, what string) *Error {
	return &Error{Code: code, What: what}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-facing message suitable for a check body.
func (e *Error) UserMessage() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *Error) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is an Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithWhy returns a copy of the error with the given explanation.
func (e *Error) WithWhy(why string) *Error {
	c := *e
	c.Why = why
	return &c
}

// WithFix returns a copy of the error with the given remediation hint.
func (e *Error) WithFix(fix string) *Error {
	c := *e
	c.Fix = fix
	return &c
}

// WithCause returns a copy of the error with the given cause.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Cause = err
	return &c
}

// UserMessage extracts the user-facing message from any error, falling
// back to Error() for errors that are not ours.
func UserMessage(err error) string {
	for e := err; e != nil; {
		if ge, ok := e.(*Error); ok {
			return ge.UserMessage()
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if ge, ok := err.(*Error); ok && ge.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
