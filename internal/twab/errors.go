package twab

import "errors"

// Errors returned by history operations. All of them are fatal to the
// triggering operation; none is retryable.
var (
	// ErrAmountOverflow is returned when an append would push the
	// accumulator past its 224-bit limit.
	ErrAmountOverflow = errors.New("accumulator overflow: amount exceeds 224 bits")

	// ErrZeroInterval is returned when two bracketing snapshots share a
	// timestamp. The idempotent-append rule makes this unreachable for
	// well-formed histories; seeing it means the history is corrupt.
	ErrZeroInterval = errors.New("zero-width snapshot interval")

	// ErrIndexOutOfRange is returned on a negative raw slot index.
	ErrIndexOutOfRange = errors.New("slot index out of range")

	// ErrBracketNotFound is returned when the binary search exhausts its
	// interval without locating a bracketing pair. Like ErrZeroInterval
	// it indicates corrupt history, not a usage error.
	ErrBracketNotFound = errors.New("no bracketing snapshot pair found")

	// ErrNonMonotonicAmount is returned when a later snapshot carries a
	// smaller accumulator than an earlier one.
	ErrNonMonotonicAmount = errors.New("accumulator decreased between snapshots")
)
