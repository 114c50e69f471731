package method

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// definitionSchema is the JSON Schema every method file must satisfy.
// Kept deliberately loose: extra fields are allowed so method files can
// carry UI hints without breaking older readers.
const definitionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "process", "inputs"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "process": {"type": "string", "minLength": 1},
    "inputs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["label", "variable"],
        "properties": {
          "label": {"type": "string", "minLength": 1},
          "variable": {"type": "string", "minLength": 1},
          "default": {"type": ["string", "number"]}
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("method.schema.json", definitionSchema)

// Definition is one stored method: a name, the raw DSL text, and the named
// inputs the operator fills in before a run.
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Process     string  `json:"process"`
	Inputs      []Input `json:"inputs"`
}

// Input is one operator-facing parameter of a method. Variable is the
// symbol the process text references; Default pre-fills the binding.
type Input struct {
	Label    string      `json:"label"`
	Variable string      `json:"variable"`
	Default  json.Number `json:"default,omitempty"`
}

// ParseDefinition validates data against the method schema and decodes it.
func ParseDefinition(data []byte) (*Definition, error) {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("method file is not valid JSON: %w", err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("method file does not match schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decoding method file: %w", err)
	}
	return &def, nil
}

// LoadDefinition reads and parses a method file from disk.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading method file: %w", err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// DefaultBindings returns the bindings implied by the input defaults.
// Inputs without a default contribute nothing; the engine's own fallbacks
// take over for those symbols.
func (d *Definition) DefaultBindings() MapBindings {
	b := make(MapBindings, len(d.Inputs))
	for _, in := range d.Inputs {
		if in.Default != "" {
			b[Symbol(in.Variable)] = in.Default.String()
		}
	}
	return b
}

// InputFor returns the input declaring the given symbol, if any.
func (d *Definition) InputFor(sym Symbol) (Input, bool) {
	for _, in := range d.Inputs {
		if strings.EqualFold(in.Variable, string(sym)) {
			return in, true
		}
	}
	return Input{}, false
}
