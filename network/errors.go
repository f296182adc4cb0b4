package network

import "errors"

var (
	ErrChannelClosed = errors.New("channel is closed")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrServerRunning = errors.New("server is already running")
	ErrServerClosed  = errors.New("server is closed")
)
