package hvp

import "errors"

// Sentinel errors surfaced by the provider and codec layers. Callers match
// against these with errors.Is; wrapped context is added with %w at each
// layer that has more to say about what failed.
var (
	// ErrUnknownArchive is returned when the leading bytes of a file match
	// none of the three known magics.
	ErrUnknownArchive = errors.New("hvp: unknown archive format")

	// ErrLoadFailed wraps any structural rejection from a variant codec:
	// bad UTF-8, a non-zero padding field, a count of zero where one or
	// more entries are required, or a CRC32/checksum mismatch in the TOC.
	ErrLoadFailed = errors.New("hvp: failed to load archive")

	// ErrOffsetOutOfRange is returned when an entry's offset/size (or, for
	// Variant C, a name_offset) would read past the end of the file.
	ErrOffsetOutOfRange = errors.New("hvp: entry offset out of range")

	// ErrDecompress wraps a failure decompressing a file's payload.
	ErrDecompress = errors.New("hvp: decompress failed")

	// ErrCompress wraps a failure compressing a file's payload during rebuild.
	ErrCompress = errors.New("hvp: compress failed")
)
