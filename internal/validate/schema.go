package validate

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed script_schema.json
var scriptSchema []byte

// Structural checks raw script JSON against the script schema before
// any semantic validation runs. A structural failure means the provider
// returned something that is not a script at all.
func Structural(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(scriptSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("script schema check: %w", err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		details = append(details, issue.String())
	}
	return fmt.Errorf("script schema violation: %s", strings.Join(details, "; "))
}
