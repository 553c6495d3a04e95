package store

import (
	"errors"
	"fmt"

	"days/internal/model"
)

// Kind classifies store errors so callers can decide whether to retry.
type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindCorruption
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindCorruption:
		return "corruption"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// StorageIOError means the underlying storage could not be read or written.
type StorageIOError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

// StorageCorruptionError describes stored data that could not be decoded.
// Index is the offending array element, or -1 when the whole collection is
// unreadable.
type StorageCorruptionError struct {
	Key   string
	Index int
	Err   error
}

func (e *StorageCorruptionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("stored collection %q is corrupt: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("stored collection %q: element %d dropped: %v", e.Key, e.Index, e.Err)
}

func (e *StorageCorruptionError) Unwrap() error { return e.Err }

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("event %q not found", e.ID)
}

// KindOf reports the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		ioErr  *StorageIOError
		corErr *StorageCorruptionError
		nfErr  *NotFoundError
		vErr   *model.ValidationError
	)
	switch {
	case errors.As(err, &vErr):
		return KindValidation
	case errors.As(err, &nfErr):
		return KindNotFound
	case errors.As(err, &corErr):
		return KindCorruption
	case errors.As(err, &ioErr):
		return KindIO
	default:
		return KindUnknown
	}
}
