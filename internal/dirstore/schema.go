package dirstore

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const entrySchemaURL = "history-entry.json"

// entrySchema describes one element of the metadata index. Ids double as
// file name stems, so they are restricted to a safe character set.
const entrySchema = `{
  "type": "object",
  "required": ["id", "createdAt", "sizeBytes"],
  "properties": {
    "id": {"type": "string", "pattern": "^[A-Za-z0-9][A-Za-z0-9._-]*$"},
    "queryId": {"type": "string"},
    "text": {"type": "string"},
    "settings": {"type": "object"},
    "createdAt": {"type": "string", "minLength": 1},
    "sizeBytes": {"type": "integer", "minimum": 0},
    "status": {"type": "string"},
    "metadata": {"type": ["object", "null"]}
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(entrySchema))
		if err != nil {
			compileErr = fmt.Errorf("parsing entry schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(entrySchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("adding entry schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(entrySchemaURL)
	})
	return compiled, compileErr
}

// validateEntry checks a raw index element against the entry schema.
func validateEntry(raw []byte) error {
	sch, err := schema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decoding entry: %w", err)
	}
	return sch.Validate(inst)
}
