package domain

// Outcome is the result of a stage that is allowed to degrade instead of
// aborting the pipeline. Call sites decide once, at the stage boundary,
// whether a failure substitutes a fallback value or terminates the run.
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

func OK[T any](value T) Outcome[T] {
	return Outcome[T]{Value: value}
}

func Degraded[T any](value T, reason string) Outcome[T] {
	return Outcome[T]{Value: value, Degraded: true, Reason: reason}
}
