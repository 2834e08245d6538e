package zxc

import (
	"errors"

	"github.com/zxclib/zxc/codec"
)

// Decoding failure taxonomy. Encoding cannot fail at the block level (the
// codec degrades to a stored block instead); every error below is fatal to
// the operation that hit it and is never retried internally. Errors raised
// while a specific block was being processed are wrapped with its sequence
// number; use errors.Is to classify.
var (
	// ErrBadMagic means the input does not start with a zxc frame.
	ErrBadMagic = errors.New("zxc: bad magic")

	// ErrUnsupportedVersion means the frame was produced by a newer format
	// version than this package understands.
	ErrUnsupportedVersion = errors.New("zxc: unsupported format version")

	// ErrTruncated means the stream ended before the bytes a header, record
	// or payload declared were available.
	ErrTruncated = errors.New("zxc: truncated stream")

	// ErrMalformedBlock means a block payload is structurally invalid: it
	// cannot expand to its declared original length, or it references data
	// out of range. It is the codec's ErrMalformed, re-exported so callers
	// only need this package's taxonomy.
	ErrMalformedBlock = codec.ErrMalformed

	// ErrChecksumMismatch means a stored digest did not match the data.
	ErrChecksumMismatch = errors.New("zxc: checksum mismatch")

	// ErrDestinationTooSmall means the expected size passed to Decompress
	// cannot hold the original lengths the frame declares.
	ErrDestinationTooSmall = errors.New("zxc: destination too small")
)
