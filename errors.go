package statecodec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase tells whether an error happened while encoding or decoding.
type Phase string

const (
	PhaseEncode Phase = "encode"
	PhaseDecode Phase = "decode"
)

// Kind categorizes runtime errors. Kinds are stable and safe to match on.
type Kind string

const (
	KindUnknownVariant Kind = "unknown_variant"
	KindMissingField   Kind = "missing_field"
	KindDuplicateField Kind = "duplicate_field"
	KindInvalidType    Kind = "invalid_type"
	KindInvalidLength  Kind = "invalid_length"
	KindNilValue       Kind = "nil_value"
	KindFormat         Kind = "format"
)

// Sentinels for errors.Is. Two errors match when their kinds are equal.
var (
	ErrUnknownVariant = &Error{Kind: KindUnknownVariant}
	ErrMissingField   = &Error{Kind: KindMissingField}
	ErrDuplicateField = &Error{Kind: KindDuplicateField}
	ErrInvalidType    = &Error{Kind: KindInvalidType}
	ErrInvalidLength  = &Error{Kind: KindInvalidLength}
	ErrNilValue       = &Error{Kind: KindNilValue}
	ErrFormat         = &Error{Kind: KindFormat}
)

// Error is the structured error returned by generated operations and formats.
type Error struct {
	Phase Phase
	Kind  Kind
	// Path holds wire keys, variant names and element indexes from the
	// outermost value down to the failing one.
	Path     []string
	Detail   string
	Value    any      // offending value, e.g. the unknown variant tag
	Expected []string // valid alternatives, e.g. the declared variant tags
	Cause    error
}

// Error renders "[decode] missing_field at /items/2: missing field \"name\"".
func (e *Error) Error() string {
	var b strings.Builder
	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(e.Pointer())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Pointer returns Path as a JSON Pointer (RFC 6901).
func (e *Error) Pointer() string {
	if len(e.Path) == 0 {
		return ""
	}
	var b strings.Builder
	for _, seg := range e.Path {
		b.WriteByte('/')
		seg = strings.ReplaceAll(seg, "~", "~0")
		b.WriteString(strings.ReplaceAll(seg, "/", "~1"))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind. A target with an
// empty phase matches either phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return t.Kind == e.Kind
}

// Builder constructs an *Error step by step.
type Builder struct {
	err Error
}

// NewError starts building an error for phase and kind.
func NewError(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Expected(alts ...string) *Builder {
	b.err.Expected = alts
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable message, formatting it when args are given.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// At prepends path segments to err. Strings are keys or variant names and
// ints are element indexes. Errors that are not *Error are wrapped as
// KindFormat so the location is never lost.
func At(err error, segments ...any) error {
	if err == nil {
		return nil
	}
	prefix := make([]string, 0, len(segments))
	for _, s := range segments {
		switch v := s.(type) {
		case string:
			prefix = append(prefix, v)
		case int:
			prefix = append(prefix, strconv.Itoa(v))
		default:
			prefix = append(prefix, fmt.Sprint(v))
		}
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: KindFormat, Path: prefix, Detail: err.Error(), Cause: err}
	}
	out := *e
	out.Path = append(prefix, e.Path...)
	return &out
}

// UnknownVariant reports a union tag that matches no declared variant.
func UnknownVariant(union, tag string, valid []string) error {
	return NewError(PhaseDecode, KindUnknownVariant).
		Value(tag).
		Expected(valid...).
		Detail("unknown variant %q of %s, expected one of %s", tag, union, quoteList(valid)).
		Build()
}

// MissingField reports a required wire key absent from the input.
func MissingField(key string) error {
	return NewError(PhaseDecode, KindMissingField).Detail("missing field %q", key).Build()
}

// DuplicateField reports a wire key that appears twice in one record.
func DuplicateField(key string) error {
	return NewError(PhaseDecode, KindDuplicateField).Path(key).Detail("duplicate field %q", key).Build()
}

// MissingPayload reports a variant tag given in unit form for a variant that carries data.
func MissingPayload(union, variant string) error {
	return NewError(PhaseDecode, KindInvalidType).
		Path(variant).
		Detail("variant %s of %s expects a payload, got a bare tag", variant, union).
		Build()
}

// ExpectUnit accepts an absent or null payload for a unit variant.
func ExpectUnit(union, variant string, payload Source) error {
	if payload == nil {
		return nil
	}
	null, err := payload.IsNull()
	if err != nil {
		return At(err, variant)
	}
	if !null {
		return NewError(PhaseDecode, KindInvalidType).
			Path(variant).
			Detail("unit variant %s of %s does not take a payload", variant, union).
			Build()
	}
	return nil
}

// InvalidLength reports a sequence whose length differs from the declared one.
func InvalidLength(want, got int) error {
	return NewError(PhaseDecode, KindInvalidLength).
		Value(got).
		Detail("invalid length %d, expected %d", got, want).
		Build()
}

// NilUnion reports an attempt to encode a nil union value.
func NilUnion(union string) error {
	return NewError(PhaseEncode, KindNilValue).Detail("cannot encode nil %s", union).Build()
}

// UnknownMember reports a union value whose dynamic type is not a declared variant.
func UnknownMember(union string, v any) error {
	return NewError(PhaseEncode, KindUnknownVariant).
		Value(fmt.Sprintf("%T", v)).
		Detail("%T is not a declared variant of %s", v, union).
		Build()
}

func quoteList(xs []string) string {
	if len(xs) == 0 {
		return "nothing"
	}
	q := make([]string, len(xs))
	for i, x := range xs {
		q[i] = strconv.Quote(x)
	}
	return strings.Join(q, ", ")
}
