package core

import "fmt"

// Kind classifies an error into the taxonomy from the error handling design.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindProviderConstruct  Kind = "provider_construction"
	KindProviderRuntime    Kind = "provider_runtime"
	KindStreaming          Kind = "streaming"
	KindToolValidation     Kind = "tool_validation"
	KindToolExecution      Kind = "tool_execution"
	KindUnknownTool        Kind = "unknown_tool"
	KindBoundedRounds      Kind = "bounded_rounds"
	KindCancellation       Kind = "cancellation"
	KindRPCParse           Kind = "rpc_parse"
	KindRPCMethodNotFound  Kind = "rpc_method_not_found"
	KindRPCInternal        Kind = "rpc_internal"
)

// Error is the concrete error type returned inside a Result or surfaced to a
// handler. It carries a Kind for branch-free classification and an optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Aborted is the sentinel error returned by a cancelled Agent Loop step.
var Aborted = New(KindCancellation, "Aborted")
