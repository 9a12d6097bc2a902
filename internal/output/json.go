package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v4"
)

// encodeJSON writes a node tree as JSON, keeping mapping keys in document
// order. An indent of zero gives compact output.
func encodeJSON(node *yaml.Node, indent int) ([]byte, error) {
	var compact bytes.Buffer
	if err := writeJSON(&compact, node); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}

	if indent <= 0 {
		compact.WriteByte('\n')
		return compact.Bytes(), nil
	}

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", strings.Repeat(" ", indent)); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, node *yaml.Node) error {
	node = unalias(node)
	if node == nil {
		buf.WriteString("null")
		return nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, node.Content[0])

	case yaml.MappingNode:
		pairs, err := mergedPairs(node)
		if err != nil {
			return err
		}
		buf.WriteByte('{')
		for i := 0; i+1 < len(pairs); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, pairs[i].Value); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, pairs[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case yaml.ScalarNode:
		return writeScalar(buf, node)

	default:
		return fmt.Errorf("unexpected node kind %v", node.Kind)
	}
	return nil
}

// mergedPairs flattens a mapping into key/value pairs with YAML merge keys
// ("<<") inlined. Keys written in the mapping itself win over merged ones,
// and earlier merge sources win over later ones.
func mergedPairs(node *yaml.Node) ([]*yaml.Node, error) {
	explicit := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		if !isMergeKey(node.Content[i]) {
			explicit[node.Content[i].Value] = true
		}
	}

	seen := make(map[string]bool)
	var pairs []*yaml.Node
	add := func(key, value *yaml.Node) {
		if seen[key.Value] {
			return
		}
		seen[key.Value] = true
		pairs = append(pairs, key, value)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if !isMergeKey(key) {
			add(key, value)
			continue
		}

		sources, err := mergeSources(value)
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			inherited, err := mergedPairs(src)
			if err != nil {
				return nil, err
			}
			for j := 0; j+1 < len(inherited); j += 2 {
				if !explicit[inherited[j].Value] {
					add(inherited[j], inherited[j+1])
				}
			}
		}
	}
	return pairs, nil
}

func isMergeKey(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!merge"
}

// mergeSources returns the mappings a merge value names: a mapping, an alias
// of one, or a sequence of those.
func mergeSources(value *yaml.Node) ([]*yaml.Node, error) {
	value = unalias(value)
	if value != nil && value.Kind == yaml.SequenceNode {
		sources := make([]*yaml.Node, 0, len(value.Content))
		for _, item := range value.Content {
			item = unalias(item)
			if item == nil || item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("line %d: merge sequence entries must be mappings", value.Line)
			}
			sources = append(sources, item)
		}
		return sources, nil
	}
	if value == nil || value.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("merge value must be a mapping or a sequence of mappings")
	}
	return []*yaml.Node{value}, nil
}

func unalias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

func writeScalar(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.ShortTag() {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!bool", "!!int", "!!float":
		var v any
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		buf.Write(data)
		return nil
	}
	return writeString(buf, node.Value)
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
