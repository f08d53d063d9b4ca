package services

import (
	"encoding/json"
	"fmt"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// automationSchema is the structural gate applied to automation programs on
// workflow writes, ahead of the semantic checks in models. Phase membership
// is not expressible here and stays in AutomationProgram.Validate.
const automationSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["automations"],
	"properties": {
		"automations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["trigger", "phase", "actions"],
				"properties": {
					"trigger": {"enum": ["on_enter", "on_exit"]},
					"phase": {"type": "string", "minLength": 1},
					"actions": {"type": "array", "items": {"$ref": "#/definitions/action"}}
				}
			}
		}
	},
	"definitions": {
		"action": {
			"type": "object",
			"required": ["type"],
			"properties": {
				"type": {"enum": ["webhook", "delay", "conditional", "move_to_phase", "set_field"]},
				"id": {"type": "string"},
				"name": {"type": "string"},
				"url": {"type": "string"},
				"method": {"type": "string"},
				"headers": {"type": "object", "additionalProperties": {"type": "string"}},
				"fields": {"type": "array", "items": {"type": "string"}},
				"use_response_from": {"type": "string"},
				"retry": {
					"type": "object",
					"properties": {
						"enabled": {"type": "boolean"},
						"max_attempts": {"type": "integer", "minimum": 0},
						"delay_ms": {"type": "integer", "minimum": 0}
					}
				},
				"on_error": {"enum": ["stop", "continue"]},
				"duration_ms": {"type": "integer", "minimum": 0},
				"field": {"type": "string"},
				"op": {"type": "string"},
				"operator": {"type": "string"},
				"conditions": {"type": "array"},
				"then": {"type": "array", "items": {"$ref": "#/definitions/action"}},
				"else": {"type": "array", "items": {"$ref": "#/definitions/action"}},
				"phase": {"type": "string"}
			}
		}
	}
}`

// validateAutomationSchema checks the program's JSON form against the
// structural schema.
func validateAutomationSchema(program *models.AutomationProgram) error {
	raw, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to marshal automations: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(automationSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to validate automations: %w", err)
	}

	if !result.Valid() {
		detail := ""
		for _, desc := range result.Errors() {
			if detail != "" {
				detail += "; "
			}

			detail += desc.String()
		}

		return fmt.Errorf("%w: %s", models.ErrInvalidAutomation, detail)
	}

	return nil
}
