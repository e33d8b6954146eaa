package fcb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMagic indicates an unexpected container signature.
var ErrInvalidMagic = errors.New("invalid container signature")

// ErrUnrecognizedVersion indicates a container version not recognized by the
// codec.
type ErrUnrecognizedVersion uint16

func (err ErrUnrecognizedVersion) Error() string {
	return fmt.Sprintf("unrecognized version %d", uint16(err))
}

// TruncatedError indicates input that ended before a declared count or
// length could be satisfied.
//
// For compressed containers, offsets past the header count from the start of
// the decompressed body.
type TruncatedError struct {
	// Offset is the byte offset at which reading stopped.
	Offset int64

	Cause error
}

func (err TruncatedError) Error() string {
	var s strings.Builder
	s.WriteString("truncated input")
	if err.Offset >= 0 {
		s.WriteString(" at ")
		s.Write(strconv.AppendInt(nil, err.Offset, 10))
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err TruncatedError) Unwrap() error {
	return err.Cause
}

// MalformedError indicates a header whose counts or lengths disagree with the
// content around it.
type MalformedError struct {
	// Offset is the byte offset where the error occurred.
	Offset int64

	Cause error
}

func (err MalformedError) Error() string {
	var s strings.Builder
	s.WriteString("malformed header")
	if err.Offset >= 0 {
		s.WriteString(" at ")
		s.Write(strconv.AppendInt(nil, err.Offset, 10))
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err MalformedError) Unwrap() error {
	return err.Cause
}

// EncodingError indicates string content that disagrees with its declared
// length, such as a missing NUL terminator, or text that cannot be
// represented in the encoding a class requires.
type EncodingError struct {
	// Offset is the byte offset of the offending value, or -1 when the error
	// was raised while encoding.
	Offset int64

	Cause error
}

func (err EncodingError) Error() string {
	var s strings.Builder
	s.WriteString("string encoding")
	if err.Offset >= 0 {
		s.WriteString(" at ")
		s.Write(strconv.AppendInt(nil, err.Offset, 10))
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err EncodingError) Unwrap() error {
	return err.Cause
}

// TagError indicates a type tag not known by the registry. It is returned
// only by decoders in strict mode; otherwise unrecognized tags are preserved
// as opaque nodes.
type TagError struct {
	// Offset is the byte offset of the node record.
	Offset int64
	// Tag is the unrecognized type tag.
	Tag uint32
}

func (err TagError) Error() string {
	return fmt.Sprintf("unrecognized type tag %08X at %d", err.Tag, err.Offset)
}

// errFlags is a warning for header flag bits with no assigned meaning. Such
// bits are dropped when the file is encoded again.
type errFlags struct {
	Offset int64
	Flags  uint16
}

func (err errFlags) Error() string {
	return fmt.Sprintf("unrecognized header flags %04X at %d", err.Flags, err.Offset)
}

// errTrailing is a warning for bytes that remain after the last root node.
// Trailing bytes are not preserved by the encoder.
type errTrailing struct {
	Offset int64
	Count  int64
}

func (err errTrailing) Error() string {
	return fmt.Sprintf("%d trailing bytes at %d", err.Count, err.Offset)
}
