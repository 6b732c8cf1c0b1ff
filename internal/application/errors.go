package application

import "errors"

// Sentinel errors for the credential lifecycle and pipeline failures.
var (
	// ErrAuthFailure wraps every signing or token exchange failure.
	ErrAuthFailure = errors.New("github app authentication failed")

	// ErrNotInitialized is returned by Credential before the first successful exchange.
	ErrNotInitialized = errors.New("installation credential not initialized")

	// ErrCredentialExpired is returned by Credential when the installed
	// credential is inside the safety margin, which only happens after
	// renewals have failed.
	ErrCredentialExpired = errors.New("installation credential expired")

	// ErrRemoteFailure wraps failures reported by the issue tracker.
	ErrRemoteFailure = errors.New("issue tracker request failed")

	// ErrStoreFailure wraps failures persisting the mapping snapshot.
	ErrStoreFailure = errors.New("mapping snapshot write failed")
)

// Rejection names the precondition a command failed.
type Rejection string

const (
	RejectWrongChannel     Rejection = "wrong_channel"
	RejectNotAuthorized    Rejection = "not_authorized"
	RejectWrongChannelKind Rejection = "wrong_channel_kind"
	RejectNotFirstMessage  Rejection = "not_first_message"
	RejectFirstMessage     Rejection = "first_message"
	RejectAlreadyExists    Rejection = "already_exists"
	RejectNoIssue          Rejection = "no_issue"
)

// PreconditionError is returned when a command is rejected before any side
// effect. Message is the text shown to the invoking user.
type PreconditionError struct {
	Reason  Rejection
	Message string
}

func (e *PreconditionError) Error() string {
	return "command rejected: " + string(e.Reason)
}

// IsRejection reports whether err is a PreconditionError with the given reason.
func IsRejection(err error, reason Rejection) bool {
	var pe *PreconditionError
	return errors.As(err, &pe) && pe.Reason == reason
}
