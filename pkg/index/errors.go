package index

import "errors"

var (
	// ErrDuplicateKey is returned when inserting a key already present
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrKeyNotFound names the missing-key condition. Search and Delete do
	// not return it: they report a missing key as a false result.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidOrder is returned when the configured order is too small
	// for a useful tree or too large for a node to fit in one page
	ErrInvalidOrder = errors.New("invalid B+tree order")
)
