package auth

import (
	"errors"
	"fmt"
)

// Kind classifies a failed credential submission.
type Kind string

const (
	// KindNetwork means no response was obtained (transport failure or timeout).
	KindNetwork Kind = "network"
	// KindRejected means the backend answered and refused the credentials.
	KindRejected Kind = "rejected"
)

// User-visible messages.
const (
	NetworkMessage          = "Unable to reach the server. Please check your connection and try again."
	LoginFallbackMessage    = "Login failed. Please try again."
	RegisterFallbackMessage = "Registration failed. Please try again."
)

// Error is the failure of a login or register round trip.
// Message is always safe to show to the user.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: NetworkMessage, Err: err}
}

func rejectedError(status int, message string) *Error {
	return &Error{Kind: KindRejected, Message: message, StatusCode: status}
}

// IsNetwork reports whether err is an auth failure without a response.
func IsNetwork(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == KindNetwork
}

// IsRejected reports whether err is a server-side refusal.
func IsRejected(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == KindRejected
}

// UserMessage extracts the message to display for err.
// Errors that did not come from the submitter get the network retry message.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return NetworkMessage
}
