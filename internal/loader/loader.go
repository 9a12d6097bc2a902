package loader

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kolah/oasplit/internal/model"
	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"
	"go.yaml.in/yaml/v4"
)

var ErrUnsupportedVersion = errors.New("unsupported OpenAPI version")

type Result struct {
	Document *model.Document
	Version  string
	Warnings []string
}

type options struct {
	logger *slog.Logger
}

type Option func(*options)

// WithLogger sets the logger handed to libopenapi.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func LoadFile(path string, opts ...Option) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	config := newConfig(filepath.Dir(absPath), opts)
	return loadWithConfig(data, DetectFormat(path, data), config)
}

// Load parses a document held in memory.
func Load(data []byte, opts ...Option) (*Result, error) {
	return loadWithConfig(data, DetectFormat("", data), newConfig("", opts))
}

func newConfig(basePath string, opts []Option) *datamodel.DocumentConfiguration {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &datamodel.DocumentConfiguration{
		BasePath: basePath,
		Logger:   o.logger,
	}
}

func loadWithConfig(data []byte, format model.Format, config *datamodel.DocumentConfiguration) (*Result, error) {
	doc, err := libopenapi.NewDocumentWithConfiguration(data, config)
	if err != nil {
		return nil, fmt.Errorf("parsing OpenAPI document: %w", err)
	}

	version := doc.GetVersion()
	if !strings.HasPrefix(version, "3.") {
		return nil, fmt.Errorf("%w: %s (only 3.x supported)", ErrUnsupportedVersion, version)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding document tree: %w", err)
	}

	document, err := model.NewDocument(&root, format)
	if err != nil {
		return nil, fmt.Errorf("indexing document: %w", err)
	}

	result := &Result{
		Document: document,
		Version:  version,
	}

	if document.Schemas.Len() == 0 {
		result.Warnings = append(result.Warnings, "document has no components.schemas")
	}
	if len(document.Paths) == 0 {
		result.Warnings = append(result.Warnings, "document has no paths; nothing to split")
	}

	return result, nil
}

// DetectFormat picks JSON for a .json file extension or, lacking one, for
// content that opens with a brace. Everything else is YAML.
func DetectFormat(path string, data []byte) model.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return model.FormatJSON
	case ".yaml", ".yml":
		return model.FormatYAML
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return model.FormatJSON
	}
	return model.FormatYAML
}
