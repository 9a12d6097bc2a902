package output

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kolah/oasplit/internal/model"
	"go.yaml.in/yaml/v4"
)

var (
	ErrInvalidPath   = errors.New("invalid path for output file")
	ErrPathCollision = errors.New("output file collision")
)

const indexName = "index"

// Filename maps an API path onto a file under root: "/users/{id}" becomes
// root/users/{id}.yaml. The bare "/" path maps to root/index.yaml. Trailing
// slashes are dropped, so distinct keys may share a file; Writer reports
// that as ErrPathCollision.
func Filename(root, apiPath string, format model.Format) (string, error) {
	if !strings.HasPrefix(apiPath, "/") {
		return "", fmt.Errorf("%w: %q does not begin with /", ErrInvalidPath, apiPath)
	}

	trimmed := strings.Trim(apiPath, "/")
	if trimmed == "" {
		return filepath.Join(root, indexName+format.Ext()), nil
	}

	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		switch {
		case seg == "", seg == ".", seg == "..":
			return "", fmt.Errorf("%w: %q has an empty or relative segment", ErrInvalidPath, apiPath)
		case strings.ContainsRune(seg, '\\'), strings.ContainsRune(seg, 0):
			return "", fmt.Errorf("%w: %q contains a forbidden character", ErrInvalidPath, apiPath)
		}
	}

	segments[len(segments)-1] += format.Ext()
	return filepath.Join(append([]string{root}, segments...)...), nil
}

// Encode renders a node tree in the given format.
func Encode(node *yaml.Node, format model.Format, indent int) ([]byte, error) {
	if format == model.FormatJSON {
		return encodeJSON(node, indent)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// Writer renders outputs under Root. It remembers which API path claimed
// each file, so two paths that map to the same file fail instead of one
// silently replacing the other.
type Writer struct {
	Root   string
	Format model.Format
	Indent int

	claimed map[string]string
}

// Render returns the target file and encoded content for one output and
// claims the file for apiPath.
func (w *Writer) Render(apiPath string, node *yaml.Node) (string, []byte, error) {
	path, err := Filename(w.Root, apiPath, w.Format)
	if err != nil {
		return "", nil, err
	}
	if err := w.claim(path, apiPath); err != nil {
		return "", nil, err
	}

	data, err := Encode(node, w.Format, w.Indent)
	if err != nil {
		return "", nil, fmt.Errorf("rendering %s: %w", apiPath, err)
	}
	return path, data, nil
}

func (w *Writer) claim(path, apiPath string) error {
	if w.claimed == nil {
		w.claimed = make(map[string]string)
	}
	if prev, ok := w.claimed[path]; ok && prev != apiPath {
		return fmt.Errorf("%w: %s is already written for path %s", ErrPathCollision, path, prev)
	}
	w.claimed[path] = apiPath
	return nil
}

// WriteFile stores rendered content, creating intermediate directories.
func (w *Writer) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
