package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// JSONSchema returns the JSON Schema describing the configuration file.
// Module sections are left open because each module decodes its own.
func JSONSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:   "yaml",
		DoNotReference: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeFor[time.Duration]():
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
					Description: "Go duration, e.g. 30s or 1m30s",
				}
			case reflect.TypeFor[yaml.Node]():
				return &jsonschema.Schema{Type: "object"}
			}
			return nil
		},
	}
	schema := r.Reflect(&Config{})
	schema.Title = "echomate configuration"
	return json.MarshalIndent(schema, "", "  ")
}
