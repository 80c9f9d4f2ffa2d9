package memorymanager

import "errors"

var (
	ErrInvalidKey     = errors.New("invalid identity key")
	ErrDegradedRecall = errors.New("degraded recall")
)
