package engine

import (
	"fmt"
	"io"

	"github.com/reoring/statecodec/internal/tree"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

// Token represents a streaming token with approximate input offset.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
}

// TokenSource is a minimal interface required by the engine.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// Number is the scalar a KindNumber token becomes in the tree; the text is
// kept verbatim so no precision is lost before the leaf decoder runs.
type Number string

// BuildTree reads exactly one value from src into an ordered tree.
// Object keys keep their wire order and duplicates.
func BuildTree(src TokenSource) (*tree.Node, error) {
	tok, err := src.NextToken()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buildValue(src, tok)
}

func buildValue(src TokenSource, tok Token) (*tree.Node, error) {
	switch tok.Kind {
	case KindBeginObject:
		return buildObject(src)
	case KindBeginArray:
		return buildArray(src)
	case KindString:
		return &tree.Node{Kind: tree.KindScalar, Value: tok.String}, nil
	case KindNumber:
		return &tree.Node{Kind: tree.KindScalar, Value: Number(tok.Number)}, nil
	case KindBool:
		return &tree.Node{Kind: tree.KindScalar, Value: tok.Bool}, nil
	case KindNull:
		return &tree.Node{Kind: tree.KindNull}, nil
	default:
		return nil, fmt.Errorf("unexpected token kind %d at offset %d", tok.Kind, tok.Offset)
	}
}

func buildObject(src TokenSource) (*tree.Node, error) {
	n := &tree.Node{Kind: tree.KindRecord}
	for {
		tok, err := next(src)
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEndObject {
			return n, nil
		}
		if tok.Kind != KindKey {
			return nil, fmt.Errorf("expected object key at offset %d", tok.Offset)
		}
		vt, err := next(src)
		if err != nil {
			return nil, err
		}
		v, err := buildValue(src, vt)
		if err != nil {
			return nil, err
		}
		n.Fields = append(n.Fields, tree.Field{Key: tok.String, Value: v})
	}
}

func buildArray(src TokenSource) (*tree.Node, error) {
	n := &tree.Node{Kind: tree.KindSeq}
	for {
		tok, err := next(src)
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEndArray {
			return n, nil
		}
		v, err := buildValue(src, tok)
		if err != nil {
			return nil, err
		}
		n.Items = append(n.Items, v)
	}
}

// next treats EOF inside a container as truncated input.
func next(src TokenSource) (Token, error) {
	tok, err := src.NextToken()
	if err == io.EOF {
		return Token{}, io.ErrUnexpectedEOF
	}
	return tok, err
}
