// File: api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
)

// Sentinel errors for the orchestration core. All fatal errors bubble
// unmodified to the scrape runner boundary; callers classify with errors.Is.
var (
	// ErrCredentialsMissing means a platform requiring login has no stored
	// credentials. Fatal; the run aborts immediately.
	ErrCredentialsMissing = errors.New("no stored credentials")

	// ErrUnsupportedOperation marks a capability intentionally unimplemented
	// for a platform. Reaching it at runtime is an integration bug, not a
	// condition to swallow.
	ErrUnsupportedOperation = errors.New("operation not supported")

	// ErrDOMUnstable signals that the rendered markup never quiesced within
	// bounds. Callers downgrade it to a warning; most platforms remain
	// usable with residual DOM churn.
	ErrDOMUnstable = errors.New("dom did not stabilize in time")
)

// AuthenticationError reports a login flow that executed but did not reach
// an authenticated state within bounds.
type AuthenticationError struct {
	Platform Platform
	Reason   string
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: authentication failed: %s: %v", e.Platform, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed: %s", e.Platform, e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ResourceError reports a browser or context acquisition/release failure.
// Fatal, but it must never prevent best-effort release of whatever was
// acquired.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("browser resource failure during %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
