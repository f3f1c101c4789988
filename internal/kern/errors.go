package kern

import "fmt"

// ConfigurationError reports a template referencing a dimension that is
// absent from the state at generation time.
type ConfigurationError struct {
	Stage    string
	Variable string
	Dim      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("kern: stage %q: template %q: dimension %q not found in state", e.Stage, e.Variable, e.Dim)
}

// ShapeMismatchError reports a stage whose actual output disagrees with
// its declared template.
type ShapeMismatchError struct {
	Stage    string
	Variable string
	Reason   string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("kern: stage %q: output %q does not match its template: %s", e.Stage, e.Variable, e.Reason)
}

// ComputationError wraps a failure of a stage's transformation function.
type ComputationError struct {
	Stage string
	Index int
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("kern: stage %q (index %d): %v", e.Stage, e.Index, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
