package loader

import (
	"fmt"

	"github.com/kolah/oasplit/internal/model"
	"github.com/kolah/oasplit/internal/resolver"
	"github.com/pb33f/libopenapi"
	validator "github.com/pb33f/libopenapi-validator"
	validatorErrors "github.com/pb33f/libopenapi-validator/errors"
	"github.com/pb33f/libopenapi/datamodel"
	"go.yaml.in/yaml/v4"
)

// Verify checks a rendered output document and returns the problems found.
// The document must parse, build a libopenapi v3 model with exactly one
// path, pass libopenapi-validator's document validation, and have every
// local $ref resolve inside the document itself. A nil slice means the
// output is self-contained and valid.
func Verify(data []byte, opts ...Option) []string {
	config := newConfig("", opts)
	config.AllowFileReferences = false
	config.AllowRemoteReferences = false

	return verifyWithConfig(data, config)
}

func verifyWithConfig(data []byte, config *datamodel.DocumentConfiguration) []string {
	doc, err := libopenapi.NewDocumentWithConfiguration(data, config)
	if err != nil {
		return []string{fmt.Sprintf("parsing output: %v", err)}
	}

	var issues []string

	built, err := doc.BuildV3Model()
	if err != nil {
		issues = append(issues, fmt.Sprintf("building output model: %v", err))
	}
	if built != nil && (built.Model.Paths == nil || built.Model.Paths.PathItems.Len() != 1) {
		issues = append(issues, "output must contain exactly one path")
	}

	v, errs := validator.NewValidator(doc)
	for _, err := range errs {
		issues = append(issues, fmt.Sprintf("validator: %v", err))
	}
	if v != nil {
		if valid, verrs := v.ValidateDocument(); !valid {
			for _, e := range verrs {
				issues = append(issues, "document validation: "+describeValidation(e))
			}
		}
	}

	return append(issues, refIssues(data)...)
}

func describeValidation(e *validatorErrors.ValidationError) string {
	if e.Reason == "" || e.Reason == e.Message {
		return e.Message
	}
	return e.Message + ": " + e.Reason
}

// refIssues resolves every $ref in the output against the output's own
// components.
func refIssues(data []byte) []string {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return []string{fmt.Sprintf("decoding output tree: %v", err)}
	}

	document, err := model.NewDocument(&root, DetectFormat("", data))
	if err != nil {
		return []string{fmt.Sprintf("indexing output: %v", err)}
	}

	r := resolver.New(document, resolver.WithExpandResponses(true))
	if _, err := r.Resolve(document.Root); err != nil {
		return []string{fmt.Sprintf("unresolved reference: %v", err)}
	}
	return nil
}
