package push

import (
	"errors"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
)

// Op names the transition a message is about.
type Op int

const (
	OpSubscribe Op = iota
	OpUnsubscribe
)

const (
	msgSubscribed          = "Push notification subscription enabled."
	msgAlreadySubscribed   = "Already subscribed to push notifications."
	msgSubscribeFailed     = "Failed to enable push notification subscription."
	msgUnsubscribed        = "Push notification subscription disabled."
	msgNothingToUnsub      = "No active push notification subscription."
	msgUnsubscribeFailed   = "Failed to disable push notification subscription."
	msgPermissionDenied    = "Notification permission denied."
	msgPermissionDismissed = "Notification permission prompt was dismissed or ignored."
	msgNotRegistered       = "This device has no push registration. Run `storyshelf push register` first."
	msgInProgress          = "A subscription change is already in progress."
)

// Describe turns the outcome of a transition into the one line shown to the
// user. Error details stay in the logs.
func Describe(op Op, result Result, err error) string {
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTransitionInProgress):
			return msgInProgress
		case errors.Is(err, ErrPermissionDismissed):
			return msgPermissionDismissed
		case errors.Is(err, domain.ErrPermissionDenied):
			return msgPermissionDenied
		case errors.Is(err, domain.ErrRegistrationMissing):
			return msgNotRegistered
		}
		if op == OpUnsubscribe {
			return msgUnsubscribeFailed
		}
		return msgSubscribeFailed
	}

	switch result {
	case ResultSubscribed:
		return msgSubscribed
	case ResultAlreadySubscribed:
		return msgAlreadySubscribed
	case ResultUnsubscribed:
		return msgUnsubscribed
	case ResultNothingToUnsubscribe:
		return msgNothingToUnsub
	}
	return ""
}
