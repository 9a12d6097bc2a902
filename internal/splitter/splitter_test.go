package splitter

import (
	"errors"
	"testing"

	"github.com/kolah/oasplit/internal/loader"
	"github.com/kolah/oasplit/internal/model"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v4"
)

func loadPetstore(t *testing.T) *model.Document {
	t.Helper()
	result, err := loader.LoadFile("testdata/petstore.yaml")
	require.NoError(t, err)
	return result.Document
}

func loadInline(t *testing.T, src string) *model.Document {
	t.Helper()
	result, err := loader.Load([]byte(src))
	require.NoError(t, err)
	return result.Document
}

func keys(node *yaml.Node) []string {
	var out []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, node.Content[i].Value)
	}
	return out
}

func encode(t *testing.T, node *yaml.Node) string {
	t.Helper()
	data, err := yaml.Marshal(node)
	require.NoError(t, err)
	return string(data)
}

func TestSplitShape(t *testing.T) {
	doc := loadPetstore(t)
	sp, err := New(doc, Options{})
	require.NoError(t, err)

	out, err := sp.Split("/pets")
	require.NoError(t, err)

	require.Equal(t, []string{"openapi", "info", "servers", "paths", "components", "security"}, keys(out.Node))

	components := model.Field(out.Node, "components")
	require.Equal(t, []string{"responses", "schemas", "securitySchemes"}, keys(components))

	paths := model.Field(out.Node, "paths")
	require.Equal(t, []string{"/pets"}, keys(paths))

	item, _ := doc.PathItem("/pets")
	require.Equal(t, encode(t, item.Node), encode(t, model.Field(paths, "/pets")))
}

func TestSplitComponents(t *testing.T) {
	doc := loadPetstore(t)

	tests := []struct {
		path      string
		placement Placement
		responses []string
		schemas   []string
	}{
		{
			path:      "/pets",
			responses: []string{"BadRequestResponse", "InternalServerErrorResponse"},
			schemas:   []string{"Error", "Pet", "Owner", "Address"},
		},
		{
			path:      "/pets/{petId}",
			responses: []string{"UnauthorizedAccessResponse"},
			schemas:   []string{"Error", "Pet", "Owner", "Address"},
		},
		{
			path:    "/health",
			schemas: []string{"Error"},
		},
		{
			path:      "/pets",
			placement: PlacementFixed,
			responses: []string{"BadRequestResponse", "InternalServerErrorResponse"},
			schemas:   []string{"Error", "Pet", "Owner", "Address"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.path+"/"+string(tt.placement), func(t *testing.T) {
			sp, err := New(doc, Options{Placement: tt.placement})
			require.NoError(t, err)

			out, err := sp.Split(tt.path)
			require.NoError(t, err)

			components := model.Field(out.Node, "components")
			respNode := model.Field(components, "responses")
			schemaNode := model.Field(components, "schemas")
			require.NotNil(t, respNode)
			require.NotNil(t, schemaNode)
			require.Equal(t, tt.responses, keys(respNode))
			require.Equal(t, tt.schemas, keys(schemaNode))

			var placed []model.Component
			for _, name := range tt.responses {
				placed = append(placed, model.Response(name))
			}
			for _, name := range tt.schemas {
				placed = append(placed, model.Schema(name))
			}
			require.Equal(t, placed, out.Components)
		})
	}
}

func TestSplitUsersExample(t *testing.T) {
	doc := loadInline(t, `
openapi: 3.0.0
info: {title: Users, version: "1"}
paths:
  /users:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/User'}
  /health:
    get:
      responses:
        "204": {description: ok}
components:
  schemas:
    Error: {type: object}
    User:
      properties:
        address: {$ref: '#/components/schemas/Address'}
    Address: {type: object}
`)
	sp, err := New(doc, Options{})
	require.NoError(t, err)

	users, err := sp.Split("/users")
	require.NoError(t, err)
	require.ElementsMatch(t, []model.Component{model.Schema("Error"), model.Schema("User"), model.Schema("Address")}, users.Components)

	health, err := sp.Split("/health")
	require.NoError(t, err)
	require.Equal(t, []model.Component{model.Schema("Error")}, health.Components)

	// Keys absent from the source stay absent.
	require.Nil(t, model.Field(health.Node, "servers"))
	require.Nil(t, model.Field(health.Node, "security"))
	require.Nil(t, model.Field(model.Field(health.Node, "components"), "securitySchemes"))
}

func TestSplitCycle(t *testing.T) {
	doc := loadInline(t, `
openapi: 3.0.0
info: {title: Cycle, version: "1"}
paths:
  /tree:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/A'}
components:
  schemas:
    Error: {type: object}
    A:
      properties:
        b: {$ref: '#/components/schemas/B'}
    B:
      properties:
        a: {$ref: '#/components/schemas/A'}
`)
	sp, err := New(doc, Options{})
	require.NoError(t, err)

	out, err := sp.Split("/tree")
	require.NoError(t, err)
	require.Equal(t, []string{"Error", "A", "B"}, keys(model.Field(model.Field(out.Node, "components"), "schemas")))
}

func TestSplitFixedPlacementMisroutes(t *testing.T) {
	doc := loadInline(t, `
openapi: 3.0.0
info: {title: Fixed, version: "1"}
paths:
  /things:
    get:
      responses:
        "404": {$ref: '#/components/responses/NotFound'}
components:
  responses:
    NotFound: {description: missing}
  schemas:
    Error: {type: object}
`)

	sp, err := New(doc, Options{})
	require.NoError(t, err)
	out, err := sp.Split("/things")
	require.NoError(t, err)
	require.Contains(t, out.Components, model.Response("NotFound"))

	sp, err = New(doc, Options{Placement: PlacementFixed})
	require.NoError(t, err)
	_, err = sp.Split("/things")
	require.ErrorIs(t, err, model.ErrDanglingRef)

	sp, err = New(doc, Options{Placement: PlacementFixed, ResponseNames: []string{"NotFound"}})
	require.NoError(t, err)
	out, err = sp.Split("/things")
	require.NoError(t, err)
	require.Contains(t, out.Components, model.Response("NotFound"))
}

func TestNewErrors(t *testing.T) {
	doc := loadInline(t, `
openapi: 3.0.0
info: {title: NoError, version: "1"}
paths: {}
components:
  schemas:
    Thing: {type: object}
`)

	_, err := New(doc, Options{})
	require.ErrorIs(t, err, model.ErrMissingComponent)

	_, err = New(doc, Options{AlwaysInclude: []string{}})
	require.NoError(t, err)

	_, err = New(doc, Options{AlwaysInclude: []string{"Thing"}, Placement: "nearest"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid placement")
}

const brokenSpec = `
openapi: 3.0.0
info: {title: Broken, version: "1"}
paths:
  /ok-first:
    get:
      responses:
        "200": {description: ok}
  /broken:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Missing'}
  /ok-last:
    get:
      responses:
        "200": {description: ok}
components:
  schemas:
    Error: {type: object}
`

func TestSplitAllAbortsOnError(t *testing.T) {
	sp, err := New(loadInline(t, brokenSpec), Options{})
	require.NoError(t, err)

	var seen []string
	err = sp.SplitAll(func(out *Output) error {
		seen = append(seen, out.Path)
		return nil
	})
	require.ErrorIs(t, err, model.ErrDanglingRef)
	require.Equal(t, []string{"/ok-first"}, seen)

	var pathErr *PathError
	require.True(t, errors.As(err, &pathErr))
	require.Equal(t, "/broken", pathErr.Path)
	require.Contains(t, err.Error(), "#/components/schemas/Missing")
}

func TestSplitAllContinueOnError(t *testing.T) {
	var failed []string
	sp, err := New(loadInline(t, brokenSpec), Options{
		ContinueOnError: true,
		OnError: func(path string, err error) {
			failed = append(failed, path)
		},
	})
	require.NoError(t, err)

	var seen []string
	err = sp.SplitAll(func(out *Output) error {
		seen = append(seen, out.Path)
		return nil
	})
	require.ErrorIs(t, err, model.ErrDanglingRef)
	require.Equal(t, []string{"/ok-first", "/ok-last"}, seen)
	require.Equal(t, []string{"/broken"}, failed)
}

func TestSplitAllCallbackError(t *testing.T) {
	sp, err := New(loadPetstore(t), Options{})
	require.NoError(t, err)

	boom := errors.New("disk full")
	err = sp.SplitAll(func(out *Output) error { return boom })
	require.ErrorIs(t, err, boom)

	var pathErr *PathError
	require.True(t, errors.As(err, &pathErr))
	require.Equal(t, "/pets", pathErr.Path)
}

func TestSplitDoesNotShareNodes(t *testing.T) {
	doc := loadPetstore(t)
	sp, err := New(doc, Options{})
	require.NoError(t, err)

	item, _ := doc.PathItem("/pets")
	before := encode(t, item.Node)

	out, err := sp.Split("/pets")
	require.NoError(t, err)

	get := model.Field(model.Field(model.Field(out.Node, "paths"), "/pets"), "get")
	get.Content = get.Content[:0]
	schemas := model.Field(model.Field(out.Node, "components"), "schemas")
	model.Field(schemas, "Error").Content = nil

	require.Equal(t, before, encode(t, item.Node))
	errDef, _ := doc.Schemas.Lookup("Error")
	require.NotEmpty(t, errDef.Content)
}

func TestSplitExpandsAliases(t *testing.T) {
	doc := loadInline(t, `
openapi: 3.0.0
info: {title: Alias, version: "1"}
paths:
  /a:
    get:
      responses:
        "200": &ok
          description: ok
  /b:
    get:
      responses:
        "200": *ok
components:
  schemas:
    Error: {type: object}
`)
	sp, err := New(doc, Options{})
	require.NoError(t, err)

	out, err := sp.Split("/b")
	require.NoError(t, err)
	require.NotContains(t, encode(t, out.Node), "*ok")
	require.Contains(t, encode(t, out.Node), "description: ok")
}

func TestSplitUnknownPath(t *testing.T) {
	sp, err := New(loadPetstore(t), Options{})
	require.NoError(t, err)

	_, err = sp.Split("/nope")
	require.Error(t, err)
	_, err = sp.Resolve("/nope")
	require.Error(t, err)
}
