package model

import (
	"fmt"
	"strings"

	"go.yaml.in/yaml/v4"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Ext returns the file extension used for outputs in this format.
func (f Format) Ext() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".yaml"
}

// Document is a parsed OpenAPI 3.x document. It is read-only once built.
type Document struct {
	Root    *yaml.Node // top-level mapping
	Version string
	Format  Format

	OpenAPI         *yaml.Node
	Info            *yaml.Node
	Servers         *yaml.Node
	Security        *yaml.Node
	SecuritySchemes *yaml.Node

	Paths     []PathItem
	Schemas   *Namespace
	Responses *Namespace
}

type PathItem struct {
	Path string
	Key  *yaml.Node
	Node *yaml.Node
}

// NewDocument indexes a decoded YAML/JSON tree. The root may be a document
// node or the top-level mapping itself.
func NewDocument(root *yaml.Node, format Format) (*Document, error) {
	root = resolveAlias(root)
	if root != nil && root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, fmt.Errorf("empty document")
		}
		root = resolveAlias(root.Content[0])
	}
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document root must be a mapping")
	}

	doc := &Document{
		Root:     root,
		Format:   format,
		OpenAPI:  Field(root, "openapi"),
		Info:     Field(root, "info"),
		Servers:  Field(root, "servers"),
		Security: Field(root, "security"),
	}
	if doc.OpenAPI != nil {
		doc.Version = doc.OpenAPI.Value
	}

	if paths := Field(root, "paths"); paths != nil {
		if paths.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("paths must be a mapping")
		}
		for i := 0; i+1 < len(paths.Content); i += 2 {
			key := paths.Content[i]
			if !strings.HasPrefix(key.Value, "/") {
				if strings.HasPrefix(key.Value, "x-") {
					continue
				}
				return nil, fmt.Errorf("path %q must begin with /", key.Value)
			}
			doc.Paths = append(doc.Paths, PathItem{Path: key.Value, Key: key, Node: paths.Content[i+1]})
		}
	}

	components := Field(root, "components")
	var err error
	if doc.Schemas, err = newNamespace(KindSchema, Field(components, "schemas")); err != nil {
		return nil, err
	}
	if doc.Responses, err = newNamespace(KindResponse, Field(components, "responses")); err != nil {
		return nil, err
	}
	doc.SecuritySchemes = Field(components, "securitySchemes")

	return doc, nil
}

// PathItem returns the path item for the given key.
func (d *Document) PathItem(path string) (PathItem, bool) {
	for _, p := range d.Paths {
		if p.Path == path {
			return p, true
		}
	}
	return PathItem{}, false
}

// Namespace returns the component mapping for a kind.
func (d *Document) Namespace(kind Kind) *Namespace {
	if kind == KindResponse {
		return d.Responses
	}
	return d.Schemas
}

// Lookup returns the definition of a component.
func (d *Document) Lookup(c Component) (*yaml.Node, bool) {
	return d.Namespace(c.Kind).Lookup(c.Name)
}

// Namespace is an ordered view over one components mapping.
type Namespace struct {
	Kind  Kind
	names []string
	defs  map[string]*yaml.Node
}

func newNamespace(kind Kind, node *yaml.Node) (*Namespace, error) {
	ns := &Namespace{Kind: kind, defs: make(map[string]*yaml.Node)}
	if node == nil {
		return ns, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("components.%s must be a mapping", kind)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		ns.names = append(ns.names, name)
		ns.defs[name] = node.Content[i+1]
	}
	return ns, nil
}

func (n *Namespace) Lookup(name string) (*yaml.Node, bool) {
	if n == nil {
		return nil, false
	}
	def, ok := n.defs[name]
	return def, ok
}

// Names returns the component names in document order.
func (n *Namespace) Names() []string {
	if n == nil {
		return nil
	}
	return n.names
}

func (n *Namespace) Len() int {
	if n == nil {
		return 0
	}
	return len(n.names)
}

// Field returns the value of key in a mapping node, or nil.
func Field(node *yaml.Node, key string) *yaml.Node {
	node = resolveAlias(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return resolveAlias(node.Content[i+1])
		}
	}
	return nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}
