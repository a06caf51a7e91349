package health

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaSources holds one JSON Schema per typed health-check kind,
// validated against a submitted ChangePlan's raw health_checks entries
// before they are ever unmarshaled into HealthCheckSpec, so a malformed
// or extra-field payload is rejected with a precise pointer rather than
// silently zero-valued by encoding/json.
var schemaSources = map[string]string{
	"http_get": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"additionalProperties": false,
		"required": ["url", "expect_status"],
		"properties": {
			"url": {"type": "string", "minLength": 1},
			"expect_status": {"type": "integer", "minimum": 100, "maximum": 599},
			"timeout_ms": {"type": "integer", "minimum": 0}
		}
	}`,
	"process_alive": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"additionalProperties": false,
		"required": ["process_name"],
		"properties": {
			"process_name": {"type": "string", "minLength": 1}
		}
	}`,
	"command_profile": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"additionalProperties": false,
		"required": ["profile_name"],
		"properties": {
			"profile_name": {"type": "string", "minLength": 1}
		}
	}`,
	"database": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"additionalProperties": false,
		"required": ["db_type", "dsn", "test_query"],
		"properties": {
			"db_type": {"type": "string", "minLength": 1},
			"dsn": {"type": "string", "minLength": 1},
			"test_query": {"type": "string", "minLength": 1}
		}
	}`,
	"file_exists": `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"additionalProperties": false,
		"required": ["paths"],
		"properties": {
			"paths": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
		}
	}`,
}

// SchemaValidator compiles the five typed health-check schemas once and
// validates untrusted JSON against whichever one a "kind" selects.
type SchemaValidator struct {
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator compiles every entry in schemaSources, failing
// fast if any is malformed.
func NewSchemaValidator() (*SchemaValidator, error) {
	v := &SchemaValidator{compiled: make(map[string]*jsonschema.Schema, len(schemaSources))}
	for kind, source := range schemaSources {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://lonelycat.local/health/%s.schema.json", kind)
		if err := c.AddResource(url, strings.NewReader(source)); err != nil {
			return nil, fmt.Errorf("health: loading schema for %q: %w", kind, err)
		}
		schema, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("health: compiling schema for %q: %w", kind, err)
		}
		v.compiled[kind] = schema
	}
	return v, nil
}

// ValidateRaw checks one health_checks[] entry, given as raw JSON,
// against the schema for its "kind" field. An unrecognized kind is
// itself a validation failure, closing the same taxonomy Checker.Run
// switches on.
func (v *SchemaValidator) ValidateRaw(raw json.RawMessage) error {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("invalid_input: health check is not a JSON object: %w", err)
	}
	schema, ok := v.compiled[probe.Kind]
	if !ok {
		return fmt.Errorf("invalid_input: unknown health check kind %q", probe.Kind)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid_input: decoding health check: %w", err)
	}
	// The discriminant field travels alongside the typed payload it
	// selects, so lift it out before validating against the typed
	// sub-schema below, which knows nothing about "kind".
	delete(payload, "kind")
	inner, ok := payload[probe.Kind]
	if !ok {
		return fmt.Errorf("invalid_input: health check kind %q missing its %q payload", probe.Kind, probe.Kind)
	}
	if err := schema.Validate(inner); err != nil {
		return fmt.Errorf("invalid_input: health check %q failed schema validation: %w", probe.Kind, err)
	}
	return nil
}

// ValidatePlanHealthChecks validates every element of a ChangePlan's
// raw health_checks array, returning the first failure. Callers parse
// the plan's health_checks field with json.RawMessage per element so
// this runs before contracts.HealthCheckSpec ever sees the payload.
func (v *SchemaValidator) ValidatePlanHealthChecks(rawChecks []json.RawMessage) error {
	for i, raw := range rawChecks {
		if err := v.ValidateRaw(raw); err != nil {
			return fmt.Errorf("health_checks[%d]: %w", i, err)
		}
	}
	return nil
}
