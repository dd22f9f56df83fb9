// Package agent implements the weekly analysis pipeline: per-ticker
// context assembly, prompt compilation, the Claude adapter, and the
// run orchestrator that drives them.
package agent

import "fmt"

// maxErrorSnippet bounds how much raw model output is carried in a
// parse error for diagnosis.
const maxErrorSnippet = 500

// MalformedOutputError indicates the model response was not valid JSON
// after fence stripping. Snippet holds the first 500 characters of the
// cleaned response.
type MalformedOutputError struct {
	Snippet string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("model returned invalid JSON. Raw response (first %d chars): %s", maxErrorSnippet, e.Snippet)
}

// InvalidPredictionError indicates a prediction outside the allowed
// direction values. The value is rejected, never defaulted.
type InvalidPredictionError struct {
	Value string
}

func (e *InvalidPredictionError) Error() string {
	return fmt.Sprintf("invalid prediction value: %q", e.Value)
}

// InvalidConfidenceError indicates a confidence that is not a number
// in [0, 100]. The value is rejected, never clamped.
type InvalidConfidenceError struct {
	Value any
}

func (e *InvalidConfidenceError) Error() string {
	return fmt.Sprintf("invalid confidence value: %v", e.Value)
}

// PriceUnavailableError aborts context construction for one ticker
// when the mandatory price signal cannot be fetched.
type PriceUnavailableError struct {
	Ticker string
	Cause  error
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("price data unavailable for %s: %v", e.Ticker, e.Cause)
}

func (e *PriceUnavailableError) Unwrap() error {
	return e.Cause
}
