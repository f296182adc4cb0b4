package component

import "errors"

// Usage errors
var (
	ErrProxyMutation  = errors.New("cannot mutate properties from a proxy component")
	ErrUnknownMethod  = errors.New("unknown method")
	ErrUnknownAction  = errors.New("unknown action")
	ErrBadEventArg    = errors.New("malformed event argument")
	ErrBadArgCount    = errors.New("wrong number of arguments")
	ErrNilSession     = errors.New("session must not be nil")
	ErrClassRegistered = errors.New("class is already registered")
	ErrUnknownClass   = errors.New("unknown class")
)
