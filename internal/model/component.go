package model

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindSchema   Kind = "schemas"
	KindResponse Kind = "responses"
)

const componentsPrefix = "#/components/"

var (
	ErrDanglingRef      = errors.New("dangling reference")
	ErrUnsupportedRef   = errors.New("unsupported reference")
	ErrInvalidRef       = errors.New("invalid reference")
	ErrMissingComponent = errors.New("missing component")
)

// Component identifies a named entry under components.schemas or
// components.responses.
type Component struct {
	Kind Kind
	Name string
}

func Schema(name string) Component   { return Component{Kind: KindSchema, Name: name} }
func Response(name string) Component { return Component{Kind: KindResponse, Name: name} }

// Pointer returns the local reference pointer for the component,
// e.g. "#/components/schemas/User".
func (c Component) Pointer() string {
	return componentsPrefix + string(c.Kind) + "/" + escapePointerToken(c.Name)
}

func (c Component) String() string {
	return string(c.Kind) + "/" + c.Name
}

// ParseRef converts a $ref value into a Component. Only local pointers into
// components.schemas and components.responses are accepted.
func ParseRef(ref string) (Component, error) {
	if !strings.HasPrefix(ref, "#") {
		return Component{}, &RefError{Ref: ref, Err: fmt.Errorf("%w: not a local pointer", ErrUnsupportedRef)}
	}
	if !strings.HasPrefix(ref, componentsPrefix) {
		return Component{}, &RefError{Ref: ref, Err: fmt.Errorf("%w: not a component pointer", ErrUnsupportedRef)}
	}

	parts := strings.Split(strings.TrimPrefix(ref, componentsPrefix), "/")
	if len(parts) != 2 || parts[1] == "" {
		return Component{}, &RefError{Ref: ref, Err: fmt.Errorf("%w: expected #/components/<category>/<name>", ErrInvalidRef)}
	}

	kind := Kind(parts[0])
	switch kind {
	case KindSchema, KindResponse:
	default:
		return Component{}, &RefError{Ref: ref, Err: fmt.Errorf("%w: category %q", ErrUnsupportedRef, parts[0])}
	}

	return Component{Kind: kind, Name: unescapePointerToken(parts[1])}, nil
}

// RefError reports a $ref that could not be resolved. Location is a JSON
// pointer to the node holding the reference, when known.
type RefError struct {
	Ref      string
	Location string
	Err      error
}

func (e *RefError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%v %q at %s", e.Err, e.Ref, e.Location)
	}
	return fmt.Sprintf("%v %q", e.Err, e.Ref)
}

func (e *RefError) Unwrap() error {
	return e.Err
}

func escapePointerToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

func unescapePointerToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}

// JoinPointer appends a token to a JSON pointer.
func JoinPointer(base, token string) string {
	return base + "/" + escapePointerToken(token)
}
