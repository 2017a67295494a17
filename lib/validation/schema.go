package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SearchResponseSchema is the JSON schema the metadata index's movie
// search endpoint must satisfy before the engine will touch it. Fields
// the engine never reads are left open on purpose; the index adds and
// removes them without notice.
var SearchResponseSchema = `{
	"type": "object",
	"properties": {
		"results": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "integer"},
					"title": {"type": "string"},
					"release_date": {"type": "string"},
					"poster_path": {"type": ["string", "null"]},
					"vote_count": {"type": "integer", "minimum": 0}
				}
			}
		}
	},
	"required": ["results"]
}`

// ValidateSearchResponse checks a raw index response against the
// schema. A malformed payload is a hard error here; the caller treats
// it as a failed lookup.
func ValidateSearchResponse(jsonData []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(SearchResponseSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate JSON schema: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("JSON validation failed: %s", strings.Join(errorMessages, "; "))
	}

	return nil
}

// ParseSearchResponse validates a raw index response and unmarshals it
// into out.
func ParseSearchResponse(jsonData []byte, out interface{}) error {
	if err := ValidateSearchResponse(jsonData); err != nil {
		return err
	}
	if err := json.Unmarshal(jsonData, out); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}
