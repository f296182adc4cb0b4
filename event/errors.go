package event

import "errors"

// Property errors
var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrInvalidValue    = errors.New("invalid property value")
	ErrNotList         = errors.New("property is not a list")
	ErrIndexOutOfRange = errors.New("mutation index out of range")
)

// Loop errors
var (
	ErrLoopNotRunning = errors.New("loop is not running")
	ErrLoopFull       = errors.New("loop mailbox is full")
)
