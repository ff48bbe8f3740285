package stamp

import (
	"errors"
	"fmt"
)

var (
	// ErrEncode marks invalid session parameters or fix values passed to Encode.
	ErrEncode = errors.New("stamp: invalid encode input")
	// ErrFormat marks a structurally invalid or non-canonical byte sequence.
	ErrFormat = errors.New("stamp: malformed packet")
	// ErrCRC marks a structurally valid packet whose checksum does not match.
	ErrCRC = errors.New("stamp: crc mismatch")
)

// EncodeError reports which input Encode rejected.
type EncodeError struct {
	Field  string
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("stamp: encode %s: %s", e.Field, e.Reason)
}

func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// CRCError carries both checksums of a rejected packet. The packet's field
// values are not attached.
type CRCError struct {
	Stored   [2]byte
	Computed [2]byte
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("stamp: crc mismatch: stored=%02X%02X computed=%02X%02X",
		e.Stored[0], e.Stored[1], e.Computed[0], e.Computed[1])
}

func (e *CRCError) Is(target error) bool { return target == ErrCRC }

func formatErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}
