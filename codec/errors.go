package codec

import "errors"

var (
	ErrExtensionRegistered = errors.New("extension name is already registered")
	ErrUnknownCommandKind  = errors.New("unknown command kind")
)
