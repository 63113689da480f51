package storage

import "errors"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidData     = errors.New("invalid data")
	ErrInvalidID       = errors.New("invalid profile id")
	ErrStorageInit     = errors.New("storage initialization failed")
	ErrFileOperation   = errors.New("file operation failed")
)
