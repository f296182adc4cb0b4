package session

import "errors"

var (
	ErrSessionClosed = errors.New("session is closed")
	ErrNilChannel    = errors.New("channel is nil")
)
