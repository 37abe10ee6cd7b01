// Package repositories holds the storage-level errors shared by every
// repository implementation.
package repositories

import "errors"

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)
