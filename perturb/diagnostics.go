package perturb

import "fmt"

// DiagnosticKind classifies a non-fatal condition reported by the engine.
type DiagnosticKind string

const (
	// DiagOverRequest means a requested removal count exceeded what the graph
	// held and was clamped.
	DiagOverRequest DiagnosticKind = "over_request"
	// DiagEdgeSkip means one requested edge addition exhausted its retries.
	DiagEdgeSkip DiagnosticKind = "edge_skip"
	// DiagAdapterFailure means text generation for one attribute gave up
	// after retries and the attribute was left unchanged.
	DiagAdapterFailure DiagnosticKind = "adapter_failure"
)

// Diagnostic is a recoverable condition the run absorbed. Diagnostics are
// returned alongside the result, never silently dropped.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

func diagf(kind DiagnosticKind, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
