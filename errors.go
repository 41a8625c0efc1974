package rangebitmap

import (
	"errors"
	"fmt"
)

var (
	// ErrValueOutOfRange is returned by Add when an appended ordinal exceeds
	// the declared maximum value.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrAppendAfterSeal is returned by Add once the appender has been built.
	ErrAppendAfterSeal = errors.New("append after seal")

	// ErrTooManyRows is returned by Add when the row index would exceed the
	// uint32 row space.
	ErrTooManyRows = errors.New("too many rows")

	// ErrMalformedBuffer is returned by Map when the buffer does not hold a
	// well-formed serialized index.
	ErrMalformedBuffer = errors.New("malformed buffer")

	// ErrUnsupportedBase is returned by Map when the header declares an
	// encoding base other than 2.
	ErrUnsupportedBase = errors.New("unsupported encoding base")
)

// ValueOutOfRangeError reports an appended ordinal above the declared bound.
//
// Matches ErrValueOutOfRange via errors.Is.
type ValueOutOfRangeError struct {
	Value    uint64
	MaxValue uint64
}

func (e *ValueOutOfRangeError) Error() string {
	return fmt.Sprintf("value %d out of range: declared maximum is %d", e.Value, e.MaxValue)
}

func (e *ValueOutOfRangeError) Unwrap() error { return ErrValueOutOfRange }

// MalformedBufferError reports where and why mapping a buffer failed.
//
// Matches ErrMalformedBuffer via errors.Is.
type MalformedBufferError struct {
	Offset int
	Reason string
}

func (e *MalformedBufferError) Error() string {
	return fmt.Sprintf("malformed buffer at offset %d: %s", e.Offset, e.Reason)
}

func (e *MalformedBufferError) Unwrap() error { return ErrMalformedBuffer }

// UnsupportedBaseError reports the base value found in a mapped header.
//
// Matches ErrUnsupportedBase via errors.Is.
type UnsupportedBaseError struct {
	Base uint8
}

func (e *UnsupportedBaseError) Error() string {
	return fmt.Sprintf("unsupported encoding base %d: only base 2 is supported", e.Base)
}

func (e *UnsupportedBaseError) Unwrap() error { return ErrUnsupportedBase }
