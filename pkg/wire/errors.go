package wire

import "errors"

// Error taxonomy for the wire codec, per spec.md §7. Codec errors are values:
// a malformed submessage is discarded without tearing down the rest of the
// containing message.
var (
	ErrTruncated          = errors.New("wire: truncated (EOF)")
	ErrMalformedSubmessage = errors.New("wire: malformed submessage")
	ErrBadBoolean         = errors.New("wire: invalid boolean octet")
	ErrBadOption          = errors.New("wire: invalid option discriminant")
	ErrBadString          = errors.New("wire: invalid utf8 string")
	ErrUnsupportedVersion = errors.New("wire: unsupported protocol magic or version")
)
