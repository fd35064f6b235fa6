// Package dexfmt provides the binary reader and the shared error taxonomy
// used by every stage of dex analysis.
package dexfmt

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an analysis failure.
type Kind string

const (
	KindInvalidHeader         Kind = "InvalidHeader"
	KindUnsupportedEndianness Kind = "UnsupportedEndianness"
	KindBadOffset             Kind = "BadOffset"
	KindIndexOutOfRange       Kind = "IndexOutOfRange"
	KindTruncatedData         Kind = "TruncatedData"

	KindUnknownOpcode    Kind = "UnknownOpcode"
	KindMalformedPayload Kind = "MalformedPayload"

	KindInvalidTarget Kind = "InvalidTarget"

	KindMethodNotFound  Kind = "MethodNotFound"
	KindAmbiguousMethod Kind = "AmbiguousMethod"

	KindIOFailure Kind = "IOFailure"
)

// Stage names the pipeline layer that raises a kind.
func (k Kind) Stage() string {
	switch k {
	case KindInvalidHeader, KindUnsupportedEndianness, KindBadOffset,
		KindIndexOutOfRange, KindTruncatedData:
		return "dex"
	case KindUnknownOpcode, KindMalformedPayload:
		return "decode"
	case KindInvalidTarget:
		return "cfg"
	case KindMethodNotFound, KindAmbiguousMethod:
		return "lookup"
	case KindIOFailure:
		return "emit"
	}
	return "unknown"
}

// NoOffset marks an Error that is not tied to a position.
const NoOffset = -1

// Error is a classified failure. Offset is a byte offset for dex-layer
// errors and a code-unit address for decode and cfg errors.
type Error struct {
	Kind    Kind
	Offset  int64
	Msg     string
	Details []string // e.g. candidate signatures for AmbiguousMethod
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at 0x%x", e.Offset)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Details) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Details, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare sentinel of the same kind, so that
// errors.Is(err, ErrTruncatedData) holds for any truncation error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrInvalidHeader         = &Error{Kind: KindInvalidHeader, Offset: NoOffset}
	ErrUnsupportedEndianness = &Error{Kind: KindUnsupportedEndianness, Offset: NoOffset}
	ErrBadOffset             = &Error{Kind: KindBadOffset, Offset: NoOffset}
	ErrIndexOutOfRange       = &Error{Kind: KindIndexOutOfRange, Offset: NoOffset}
	ErrTruncatedData         = &Error{Kind: KindTruncatedData, Offset: NoOffset}
	ErrUnknownOpcode         = &Error{Kind: KindUnknownOpcode, Offset: NoOffset}
	ErrMalformedPayload      = &Error{Kind: KindMalformedPayload, Offset: NoOffset}
	ErrInvalidTarget         = &Error{Kind: KindInvalidTarget, Offset: NoOffset}
	ErrMethodNotFound        = &Error{Kind: KindMethodNotFound, Offset: NoOffset}
	ErrAmbiguousMethod       = &Error{Kind: KindAmbiguousMethod, Offset: NoOffset}
	ErrIOFailure             = &Error{Kind: KindIOFailure, Offset: NoOffset}
)

// Errorf builds an Error of the given kind at offset.
func Errorf(kind Kind, offset int64, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: NoOffset, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
