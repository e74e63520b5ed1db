package app

import (
	"errors"
	"fmt"
)

var (
	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrNameRequired             = errors.New("name required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrPasswordNotSet           = errors.New("account has no password, use federated login")
	ErrChatNotFound             = errors.New("chat not found")
	ErrMessageTextRequired      = errors.New("message text required")
	ErrAIResponseFailed         = errors.New("failed to get ai response")
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidRole              = errors.New("invalid role")
)

// Limit kinds reported to clients when the free plan gate trips.
const (
	LimitChats    = "chats"
	LimitMessages = "messages"
)

// LimitError carries the payload for a plan-limit rejection: which cap was
// hit, its value, and the live count that tripped it.
type LimitError struct {
	Kind    string
	Limit   int
	Current int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("free plan %s limit reached (%d/%d)", e.Kind, e.Current, e.Limit)
}
