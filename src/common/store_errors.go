package common

import (
	"errors"
	"fmt"
)

// StoreErrType is the code of a StoreErr.
type StoreErrType uint32

const (
	// KeyNotFound means that no record exists for the key.
	KeyNotFound StoreErrType = iota
	// InvalidKey means that the key cannot be stored.
	InvalidKey
)

func (t StoreErrType) String() string {
	switch t {
	case KeyNotFound:
		return "Not Found"
	case InvalidKey:
		return "Invalid Key"
	default:
		return "Unknown"
	}
}

// StoreErr is returned by directories and stores. It carries the kind of data
// that was requested, the key, and a code.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr creates a StoreErr for key.
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Key returns the key the operation failed on.
func (e StoreErr) Key() string {
	return e.key
}

func (e StoreErr) Error() string {
	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, e.errType)
}

// IsStore checks that err is, or wraps, a StoreErr with code t.
func IsStore(err error, t StoreErrType) bool {
	var storeErr StoreErr
	return errors.As(err, &storeErr) && storeErr.errType == t
}
