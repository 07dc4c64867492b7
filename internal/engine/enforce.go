package engine

import (
	"fmt"
)

// Enforcement wrapper for TokenSource applying max depth and max bytes
// checks in a streaming fashion, before any tree is built.

// EnforceOptions controls runtime enforcement behavior. Zero values disable a check.
type EnforceOptions struct {
	MaxDepth int
	MaxBytes int64
}

// LimitError reports which limit was exceeded and where.
type LimitError struct {
	Limit  string // "max_depth" | "max_bytes"
	Offset int64
}

func (e *LimitError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s exceeded at offset %d", e.Limit, e.Offset)
	}
	return e.Limit + " exceeded"
}

// WrapWithEnforcement returns a TokenSource that enforces opt. With no limits
// set it returns inner unchanged.
func WrapWithEnforcement(inner TokenSource, opt EnforceOptions) TokenSource {
	if opt.MaxDepth <= 0 && opt.MaxBytes <= 0 {
		return inner
	}
	return &enforcingTokenSource{inner: inner, opt: opt}
}

type enforcingTokenSource struct {
	inner TokenSource
	opt   EnforceOptions
	depth int
}

func (e *enforcingTokenSource) Location() int64 { return e.inner.Location() }

func (e *enforcingTokenSource) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}
	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		e.depth++
		if e.opt.MaxDepth > 0 && e.depth > e.opt.MaxDepth {
			return Token{}, &LimitError{Limit: "max_depth", Offset: e.Location()}
		}
	case KindEndObject, KindEndArray:
		if e.depth > 0 {
			e.depth--
		}
	}
	if e.opt.MaxBytes > 0 {
		if off := e.Location(); off >= 0 && off > e.opt.MaxBytes {
			return Token{}, &LimitError{Limit: "max_bytes", Offset: off}
		}
	}
	return tok, nil
}
