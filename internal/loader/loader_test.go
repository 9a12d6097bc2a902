package loader

import (
	"strings"
	"testing"

	"github.com/kolah/oasplit/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	result, err := LoadFile("testdata/petstore.yaml")
	require.NoError(t, err)

	require.Equal(t, "3.0.3", result.Version)
	require.Empty(t, result.Warnings)

	doc := result.Document
	require.Equal(t, model.FormatYAML, doc.Format)
	require.Len(t, doc.Paths, 3)
	require.Equal(t, "/pets", doc.Paths[0].Path)
	require.Equal(t, "/pets/{petId}", doc.Paths[1].Path)
	require.Equal(t, "/health", doc.Paths[2].Path)
	require.Equal(t, []string{"Error", "Pet", "Owner", "Address", "Unused"}, doc.Schemas.Names())
	require.Equal(t, 3, doc.Responses.Len())
}

func TestLoadFileJSON(t *testing.T) {
	result, err := LoadFile("testdata/minimal.json")
	require.NoError(t, err)

	require.Equal(t, "3.1.0", result.Version)
	require.Equal(t, model.FormatJSON, result.Document.Format)
	require.Len(t, result.Document.Paths, 1)
	require.Equal(t, 0, result.Document.Responses.Len())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading spec file")

	_, err = LoadFile("testdata/swagger2.yaml")
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestLoadWarnings(t *testing.T) {
	result, err := Load([]byte("openapi: 3.0.0\ninfo:\n  title: Empty\n  version: '1'\npaths: {}\n"))
	require.NoError(t, err)
	require.Contains(t, result.Warnings, "document has no components.schemas")
	require.Contains(t, result.Warnings, "document has no paths; nothing to split")
}

func TestLoadRejectsBadPathKey(t *testing.T) {
	_, err := Load([]byte("openapi: 3.0.0\ninfo:\n  title: Bad\n  version: '1'\npaths:\n  users:\n    get: {}\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "must begin with /")
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		data     string
		expected model.Format
	}{
		{"json extension", "api.json", "openapi: 3.0.0", model.FormatJSON},
		{"yaml extension", "api.yaml", `{"openapi": "3.0.0"}`, model.FormatYAML},
		{"yml extension", "API.YML", "", model.FormatYAML},
		{"brace content", "", "  \n{\"openapi\": \"3.0.0\"}", model.FormatJSON},
		{"plain content", "", "openapi: 3.0.0", model.FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, DetectFormat(tt.path, []byte(tt.data)))
		})
	}
}

func TestVerify(t *testing.T) {
	t.Run("single path document", func(t *testing.T) {
		issues := Verify([]byte(`
openapi: 3.0.3
info:
  title: One
  version: "1"
paths:
  /ping:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pong'
components:
  schemas:
    Pong:
      type: object
`))
		require.Empty(t, issues)
	})

	t.Run("more than one path", func(t *testing.T) {
		issues := Verify([]byte(`
openapi: 3.0.3
info:
  title: Two
  version: "1"
paths:
  /a:
    get:
      responses:
        "200":
          description: ok
  /b:
    get:
      responses:
        "200":
          description: ok
`))
		require.Contains(t, issues, "output must contain exactly one path")
	})

	t.Run("dangling reference", func(t *testing.T) {
		issues := Verify([]byte(`
openapi: 3.0.3
info:
  title: Dangling
  version: "1"
paths:
  /ping:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Ghost'
components:
  schemas:
    Pong:
      type: object
`))
		require.True(t, hasIssue(issues, "unresolved reference: dangling reference"), "issues: %v", issues)
		require.True(t, hasIssue(issues, "#/components/schemas/Ghost"), "issues: %v", issues)
	})

	t.Run("dangling reference inside a component", func(t *testing.T) {
		issues := Verify([]byte(`
openapi: 3.0.3
info:
  title: Dangling
  version: "1"
paths:
  /ping:
    get:
      responses:
        "400":
          $ref: '#/components/responses/Bad'
components:
  responses:
    Bad:
      description: bad
      content:
        application/json:
          schema:
            $ref: '#/components/schemas/Error'
  schemas: {}
`))
		require.True(t, hasIssue(issues, "#/components/schemas/Error"), "issues: %v", issues)
	})

	t.Run("missing info", func(t *testing.T) {
		issues := Verify([]byte(`
openapi: 3.0.3
paths:
  /ping:
    get:
      responses:
        "200":
          description: ok
`))
		require.True(t, hasIssue(issues, "document validation: "), "issues: %v", issues)
	})

	t.Run("empty document", func(t *testing.T) {
		issues := Verify(nil)
		require.Len(t, issues, 1)
		require.Contains(t, issues[0], "parsing output")
	})
}

func hasIssue(issues []string, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, substr) {
			return true
		}
	}
	return false
}
