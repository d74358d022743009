// internal/api/schema.go
package api

// retrieveRequestSchema validates POST /v1/listing-cards bodies. Unknown
// keys are rejected rather than silently dropped, so a misspelled option
// fails loudly instead of changing behavior.
const retrieveRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"mode": {
			"type": "string",
			"enum": ["none", "filter", "tabs"]
		},
		"card_count": {
			"type": "integer",
			"minimum": 1,
			"maximum": 24
		},
		"selected_terms": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"treatmentOptions": {"$ref": "#/definitions/termList"},
				"paymentOptions": {"$ref": "#/definitions/termList"},
				"programs": {"$ref": "#/definitions/termList"},
				"levelsOfCare": {"$ref": "#/definitions/termList"},
				"clinicalServices": {"$ref": "#/definitions/termList"},
				"amenities": {"$ref": "#/definitions/termList"}
			}
		},
		"context": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"page_type": {
					"type": "string",
					"enum": ["default", "facility", "state", "city"]
				},
				"state": {"type": "string"},
				"city": {"type": "string"},
				"listing_id": {"type": "integer", "minimum": 0}
			}
		},
		"exclude_displayed": {"type": "boolean"},
		"excluded_ids": {
			"type": "array",
			"items": {"type": "integer", "minimum": 1}
		},
		"display_context": {"type": "string", "maxLength": 128},
		"path": {"type": "string", "maxLength": 2048},
		"user_location": {
			"type": "object",
			"additionalProperties": false,
			"required": ["lat", "lon"],
			"properties": {
				"lat": {"type": "number", "minimum": -90, "maximum": 90},
				"lon": {"type": "number", "minimum": -180, "maximum": 180}
			}
		},
		"fetch_location": {"type": "boolean"},
		"bypass_cache": {"type": "boolean"}
	},
	"definitions": {
		"termList": {
			"type": "array",
			"items": {"type": "string", "minLength": 1, "maxLength": 128}
		}
	}
}`
