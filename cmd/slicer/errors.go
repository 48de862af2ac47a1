package main

import "fmt"

// exitError pairs an error with the §7 exit code its kind maps to.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

// configErr wraps a ConfigError (missing/ill-formed criterion, unknown
// entry, EmptyCriteria) — fatal, exit 1.
func configErr(format string, args ...any) error {
	return &exitError{code: 1, err: fmt.Errorf(format, args...)}
}

// parseErr wraps a ParseError (IR unreadable) — fatal, exit 1.
func parseErr(format string, args ...any) error {
	return &exitError{code: 1, err: fmt.Errorf(format, args...)}
}

// analysisErr wraps an AnalysisError (pointer/data-dep failure, or a
// VerifyError when --verify is set) — fatal, exit 2.
func analysisErr(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}
