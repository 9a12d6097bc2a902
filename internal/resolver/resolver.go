// Package resolver computes the components a document fragment depends on.
//
// A fragment is walked as a yaml.Node tree. Every $ref found in a mapping is
// parsed into a model.Component, looked up in the document and, for schemas,
// expanded recursively. Each component is marked visited before its
// definition is expanded, so reference cycles terminate.
package resolver

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kolah/oasplit/internal/model"
	"go.yaml.in/yaml/v4"
)

const refKey = "$ref"

type Resolver struct {
	doc             *model.Document
	expandResponses bool
}

type Option func(*Resolver)

// WithExpandResponses makes the resolver follow references found inside
// response definitions as well as schemas.
func WithExpandResponses(expand bool) Option {
	return func(r *Resolver) {
		r.expandResponses = expand
	}
}

func New(doc *model.Document, opts ...Option) *Resolver {
	r := &Resolver{doc: doc}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve is shorthand for New(doc).Resolve(fragment).
func Resolve(doc *model.Document, fragment *yaml.Node) (*Set, error) {
	return New(doc).Resolve(fragment)
}

// Resolve returns every component the fragment references, directly or
// through other schemas. The document is not modified.
func (r *Resolver) Resolve(fragment *yaml.Node) (*Set, error) {
	set := NewSet()
	if err := r.expand(fragment, "", set); err != nil {
		return nil, err
	}
	return set, nil
}

func (r *Resolver) expand(node *yaml.Node, location string, set *Set) error {
	var refs []foundRef
	if err := findRefs(node, location, &refs, make(map[*yaml.Node]bool)); err != nil {
		return err
	}

	for _, found := range refs {
		c, err := model.ParseRef(found.value)
		if err != nil {
			return withLocation(err, found.location)
		}
		if set.Has(c) {
			continue
		}

		def, ok := r.doc.Lookup(c)
		if !ok {
			return &model.RefError{
				Ref:      found.value,
				Location: found.location,
				Err:      fmt.Errorf("%w: no %s named %q", model.ErrDanglingRef, strings.TrimSuffix(string(c.Kind), "s"), c.Name),
			}
		}
		set.Add(c)

		if c.Kind == model.KindSchema || r.expandResponses {
			if err := r.expand(def, c.Pointer(), set); err != nil {
				return err
			}
		}
	}
	return nil
}

type foundRef struct {
	value    string
	location string
}

// findRefs collects $ref values in traversal order. Mapping values and
// sequence items are always descended into, including the siblings of a
// $ref. An alias is followed once per walk.
func findRefs(node *yaml.Node, location string, refs *[]foundRef, seen map[*yaml.Node]bool) error {
	if node == nil {
		return nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := findRefs(child, location, refs, seen); err != nil {
				return err
			}
		}

	case yaml.AliasNode:
		if seen[node] {
			return nil
		}
		seen[node] = true
		return findRefs(node.Alias, location, refs, seen)

	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			child := model.JoinPointer(location, key.Value)

			if key.Value == refKey {
				target := value
				for target != nil && target.Kind == yaml.AliasNode {
					target = target.Alias
				}
				if target != nil && target.Kind == yaml.ScalarNode {
					*refs = append(*refs, foundRef{value: target.Value, location: child})
					continue
				}
				return &model.RefError{
					Ref:      describe(value),
					Location: child,
					Err:      fmt.Errorf("%w: $ref must be a string", model.ErrInvalidRef),
				}
			}

			if err := findRefs(value, child, refs, seen); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		for i, item := range node.Content {
			if err := findRefs(item, fmt.Sprintf("%s/%d", location, i), refs, seen); err != nil {
				return err
			}
		}
	}

	return nil
}

func withLocation(err error, location string) error {
	if refErr, ok := err.(*model.RefError); ok && refErr.Location == "" {
		refErr.Location = location
	}
	return err
}

func describe(node *yaml.Node) string {
	if node == nil {
		return "<nil>"
	}
	switch node.Kind {
	case yaml.MappingNode:
		return "<mapping>"
	case yaml.SequenceNode:
		return "<sequence>"
	}
	return node.Value
}

// Set is a deduplicated collection of components.
type Set struct {
	items map[model.Component]struct{}
}

func NewSet(components ...model.Component) *Set {
	s := &Set{items: make(map[model.Component]struct{}, len(components))}
	for _, c := range components {
		s.Add(c)
	}
	return s
}

func (s *Set) Add(c model.Component) {
	s.items[c] = struct{}{}
}

func (s *Set) Has(c model.Component) bool {
	_, ok := s.items[c]
	return ok
}

func (s *Set) Len() int {
	return len(s.items)
}

// Components returns the set members sorted by kind, then name.
func (s *Set) Components() []model.Component {
	out := make([]model.Component, 0, len(s.items))
	for c := range s.items {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.Component) int {
		if a.Kind != b.Kind {
			return strings.Compare(string(a.Kind), string(b.Kind))
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Names returns the sorted, deduplicated component names regardless of kind.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.items))
	for c := range s.items {
		names = append(names, c.Name)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Equal reports whether both sets hold the same components.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for c := range s.items {
		if !other.Has(c) {
			return false
		}
	}
	return true
}
