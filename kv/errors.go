package kv

import "github.com/pkg/errors"

var (
	ErrNotFound      = errors.New("key not found")
	ErrEmptyKey      = errors.New("key must not be empty")
	ErrKeyTooLarge   = errors.New("key exceeds maximum size")
	ErrValueTooLarge = errors.New("value exceeds maximum size")
	ErrClosed        = errors.New("store closed")
	ErrLocked        = errors.New("store directory is locked by another process")
)
