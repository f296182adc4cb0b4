package config

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrConfigFileNotFound = errors.New("configuration file not found")
	ErrUnsupportedFormat  = errors.New("unsupported configuration format")
)
