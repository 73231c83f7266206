// Package apperrors defines the error kinds a query request can end in.
//
// Every failure in the generation pipeline is terminal for its request. The
// kind lets the HTTP layer pick a status code and lets metrics count outcomes
// without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// InputError is an empty or missing required field.
	InputError Kind = "input_error"
	// SchemaUnavailable means no DDL schema was loaded for the process.
	SchemaUnavailable Kind = "schema_unavailable"
	// TransportError covers network failures and non-2xx answers from the LLM API.
	TransportError Kind = "transport_error"
	// MalformedLLMResponse is a 2xx body without choices[0].message.content.
	MalformedLLMResponse Kind = "malformed_llm_response"
	// ValidationError is a security policy violation.
	ValidationError Kind = "validation_error"
	// ExecutionError is a database-level failure.
	ExecutionError Kind = "execution_error"
	// Internal is anything not classified above.
	Internal Kind = "internal"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message renders err for end users. For *E it is the message plus the
// wrapped cause, which is how database and API diagnostics reach the caller.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if !errors.As(err, &e) {
		return "internal error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}
