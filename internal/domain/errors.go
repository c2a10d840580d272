package domain

import "errors"

var (
	// ErrPermissionDenied means the user declined (or dismissed) the
	// notification prompt. Terminal for the current attempt.
	ErrPermissionDenied = errors.New("notification permission denied")

	// ErrRegistrationMissing means there is no active local registration to
	// create or look up a push handle with.
	ErrRegistrationMissing = errors.New("no active registration")

	// ErrRemoteRejected means the remote subscription endpoint refused or
	// failed a register/unregister call.
	ErrRemoteRejected = errors.New("remote rejected subscription change")

	// ErrRevokeFailed means the local handle could not be destroyed.
	ErrRevokeFailed = errors.New("local subscription could not be revoked")

	// ErrInconsistentState means local and remote subscription state
	// diverged and a compensating action failed too.
	ErrInconsistentState = errors.New("local and remote subscription state diverged")

	// ErrTransitionInProgress is returned when a subscribe or unsubscribe is
	// attempted while another one has not finished.
	ErrTransitionInProgress = errors.New("subscription change already in progress")

	// ErrStorageUnavailable wraps every failed write to a bookmark backend.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMissingID is returned when a record without an identifier is written.
	ErrMissingID = errors.New("missing id")

	// ErrNotFound is returned by backends looking up an absent key.
	ErrNotFound = errors.New("not found")
)
