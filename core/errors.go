package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by an embedder matches exactly one of
// these under errors.Is.
var (
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrMalformedContainer = errors.New("malformed container")
	ErrCollaborator       = errors.New("collaborator failure")
	ErrPacketTooLarge     = errors.New("metadata packet too large")
)

// UnsupportedFormatError is returned when a MIME type has no embedder.
type UnsupportedFormatError struct {
	MIME string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported type for embedding: %q", e.MIME)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// MalformedContainerError is returned when a required structural element is
// missing or a length field points outside the buffer.
type MalformedContainerError struct {
	Format string
	Offset int64
	Reason string
}

func (e *MalformedContainerError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: malformed container at offset %d: %s", e.Format, e.Offset, e.Reason)
	}
	return fmt.Sprintf("%s: malformed container: %s", e.Format, e.Reason)
}

func (e *MalformedContainerError) Is(target error) bool { return target == ErrMalformedContainer }

// Malformed builds a MalformedContainerError. Pass a negative offset when
// the problem is not tied to a position.
func Malformed(format string, offset int64, reason string, args ...any) error {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &MalformedContainerError{Format: format, Offset: offset, Reason: reason}
}

// CollaboratorError wraps a failure of the EXIF codec or another external
// codec the engine delegates to.
type CollaboratorError struct {
	Op  string // "exif load", "exif dump", "id3 parse", ...
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

// PacketTooLargeError is returned when a carrier cannot hold the packet,
// e.g. a JPEG APP1 segment is capped at 65535 bytes.
type PacketTooLargeError struct {
	Carrier string
	Size    int
	Limit   int
}

func (e *PacketTooLargeError) Error() string {
	return fmt.Sprintf("%s: packet of %d bytes exceeds limit of %d", e.Carrier, e.Size, e.Limit)
}

func (e *PacketTooLargeError) Is(target error) bool { return target == ErrPacketTooLarge }
