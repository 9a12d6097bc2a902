// Package splitter builds one self-contained OpenAPI document per API path.
//
// Every output shares the source metadata (openapi, info, servers, security
// schemes, security), carries a single path item and only the components that
// path item references. The always-included schemas (Error by default) are
// present in every output.
package splitter

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kolah/oasplit/internal/model"
	"github.com/kolah/oasplit/internal/resolver"
	"go.yaml.in/yaml/v4"
)

type Placement string

const (
	// PlacementMembership puts a component in the mapping its pointer names.
	PlacementMembership Placement = "membership"
	// PlacementFixed routes names in Options.ResponseNames to
	// components.responses and everything else to components.schemas.
	PlacementFixed Placement = "fixed"
)

// DefaultResponseNames is the response vocabulary used by PlacementFixed.
var DefaultResponseNames = []string{
	"BadRequestResponse",
	"UnauthorizedAccessResponse",
	"InternalServerErrorResponse",
}

var DefaultAlwaysInclude = []string{"Error"}

type Options struct {
	Placement       Placement
	ResponseNames   []string
	AlwaysInclude   []string
	ExpandResponses bool

	// ContinueOnError keeps SplitAll going after a failed path. Failures are
	// passed to OnError and returned joined once all paths are done.
	ContinueOnError bool
	OnError         func(path string, err error)
}

// PathError is returned when a single path cannot be split.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

type Output struct {
	Path string
	Node *yaml.Node
	// Components lists what was placed into the output's components:
	// responses, then schemas with the always-included ones leading.
	Components []model.Component
}

type Splitter struct {
	doc      *model.Document
	resolver *resolver.Resolver
	opts     Options
}

func New(doc *model.Document, opts Options) (*Splitter, error) {
	if opts.Placement == "" {
		opts.Placement = PlacementMembership
	}
	if opts.Placement != PlacementMembership && opts.Placement != PlacementFixed {
		return nil, fmt.Errorf("invalid placement: %s (valid: membership, fixed)", opts.Placement)
	}
	if opts.ResponseNames == nil {
		opts.ResponseNames = DefaultResponseNames
	}
	if opts.AlwaysInclude == nil {
		opts.AlwaysInclude = DefaultAlwaysInclude
	}

	for _, name := range opts.AlwaysInclude {
		if _, ok := doc.Schemas.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: components.schemas.%s is always included but not defined", model.ErrMissingComponent, name)
		}
	}

	return &Splitter{
		doc:      doc,
		resolver: resolver.New(doc, resolver.WithExpandResponses(opts.ExpandResponses)),
		opts:     opts,
	}, nil
}

// Resolve returns the components referenced by the path item at path.
func (s *Splitter) Resolve(path string) (*resolver.Set, error) {
	item, ok := s.doc.PathItem(path)
	if !ok {
		return nil, &PathError{Path: path, Err: errors.New("no such path")}
	}
	set, err := s.resolver.Resolve(item.Node)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}
	return set, nil
}

// Split builds the output document for one path.
func (s *Splitter) Split(path string) (*Output, error) {
	item, ok := s.doc.PathItem(path)
	if !ok {
		return nil, &PathError{Path: path, Err: errors.New("no such path")}
	}

	set, err := s.resolver.Resolve(item.Node)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	responses, schemas, err := s.place(set)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	out := &Output{Path: path}
	root := mapping()

	appendField(root, "openapi", clone(s.doc.OpenAPI))
	appendField(root, "info", clone(s.doc.Info))
	appendField(root, "servers", clone(s.doc.Servers))

	paths := mapping()
	paths.Content = append(paths.Content, clone(item.Key), clone(item.Node))
	appendField(root, "paths", paths)

	components := mapping()
	respNode := mapping()
	for _, name := range responses {
		def, _ := s.doc.Responses.Lookup(name)
		appendField(respNode, name, clone(def))
		out.Components = append(out.Components, model.Response(name))
	}
	schemaNode := mapping()
	for _, name := range schemas {
		def, _ := s.doc.Schemas.Lookup(name)
		appendField(schemaNode, name, clone(def))
		out.Components = append(out.Components, model.Schema(name))
	}
	appendField(components, "responses", respNode)
	appendField(components, "schemas", schemaNode)
	appendField(components, "securitySchemes", clone(s.doc.SecuritySchemes))
	appendField(root, "components", components)

	appendField(root, "security", clone(s.doc.Security))

	out.Node = root
	return out, nil
}

// SplitAll splits every path in document order and hands each output to fn.
func (s *Splitter) SplitAll(fn func(*Output) error) error {
	var errs []error
	for _, item := range s.doc.Paths {
		out, err := s.Split(item.Path)
		if err == nil {
			if err = fn(out); err != nil {
				err = &PathError{Path: item.Path, Err: err}
			}
		}
		if err == nil {
			continue
		}
		if !s.opts.ContinueOnError {
			return err
		}
		if s.opts.OnError != nil {
			s.opts.OnError(item.Path, err)
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// place partitions the resolved set into response and schema names, each in
// source document order. Always-included schemas lead the schema list.
func (s *Splitter) place(set *resolver.Set) (responses, schemas []string, err error) {
	wantResp := make(map[string]bool)
	wantSchema := make(map[string]bool)

	for _, c := range set.Components() {
		kind := c.Kind
		if s.opts.Placement == PlacementFixed {
			kind = model.KindSchema
			if slices.Contains(s.opts.ResponseNames, c.Name) {
				kind = model.KindResponse
			}
		}
		if _, ok := s.doc.Namespace(kind).Lookup(c.Name); !ok {
			return nil, nil, &model.RefError{
				Ref: c.Pointer(),
				Err: fmt.Errorf("%w: %s is placed in components.%s but not defined there", model.ErrDanglingRef, c.Name, kind),
			}
		}
		if kind == model.KindResponse {
			wantResp[c.Name] = true
		} else {
			wantSchema[c.Name] = true
		}
	}

	for _, name := range s.doc.Responses.Names() {
		if wantResp[name] {
			responses = append(responses, name)
		}
	}

	schemas = append(schemas, s.opts.AlwaysInclude...)
	for _, name := range s.doc.Schemas.Names() {
		if wantSchema[name] && !slices.Contains(schemas, name) {
			schemas = append(schemas, name)
		}
	}
	return responses, schemas, nil
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// appendField adds key: value to m. A nil value is skipped.
func appendField(m *yaml.Node, key string, value *yaml.Node) {
	if value == nil {
		return
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

// clone deep-copies a node tree, expanding aliases and dropping anchors so
// outputs never share structure with the source or each other.
func clone(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node == nil {
		return nil
	}
	cp := *node
	cp.Anchor = ""
	cp.Alias = nil
	if len(node.Content) > 0 {
		cp.Content = make([]*yaml.Node, len(node.Content))
		for i, child := range node.Content {
			cp.Content[i] = clone(child)
		}
	}
	return &cp
}
