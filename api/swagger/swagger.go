package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Availability API",
        "description": "Availability computation service for tutors and counselors",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Availability", "description": "Computed free-time windows"},
        {"name": "RecurringAvailability", "description": "Weekly recurring templates"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/tutors/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Compute tutor availability",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "start", "in": "query", "type": "string"},
                    {"name": "end", "in": "query", "type": "string"},
                    {"name": "location", "in": "query", "type": "string"},
                    {"name": "exclude_sessions", "in": "query", "type": "boolean"},
                    {"name": "use_recurring_availability", "in": "query", "type": "boolean"},
                    {"name": "for_availability_view", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Availability"],
                "summary": "Replace tutor availability for whole days",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceDayAvailabilityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutors/{id}/availability/check": {
            "get": {
                "tags": ["Availability"],
                "summary": "Check whether one slot is fully available",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "start", "in": "query", "type": "string", "required": true},
                    {"name": "end", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tutors/{id}/recurring-availability": {
            "get": {
                "tags": ["RecurringAvailability"],
                "summary": "Get the weekly recurring template",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["RecurringAvailability"],
                "summary": "Replace one trimester of the weekly recurring template",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceRecurringAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["RecurringAvailability"],
                "summary": "Reset the weekly recurring template to empty",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/counselors/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Compute counselor availability",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "start", "in": "query", "type": "string"},
                    {"name": "end", "in": "query", "type": "string"},
                    {"name": "location", "in": "query", "type": "string"},
                    {"name": "exclude_sessions", "in": "query", "type": "boolean"},
                    {"name": "use_recurring_availability", "in": "query", "type": "boolean"},
                    {"name": "for_availability_view", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Availability"],
                "summary": "Replace counselor availability for whole days",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceDayAvailabilityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Timespan": {
            "type": "object",
            "properties": {
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "location": {"type": "string"},
                "tutor": {"type": "string"},
                "counselor": {"type": "string"}
            }
        },
        "ReplaceDayAvailabilityRequest": {
            "type": "object",
            "properties": {
                "timezone_offset": {"type": "integer"},
                "availability": {"type": "object"}
            }
        },
        "ReplaceRecurringAvailabilityRequest": {
            "type": "object",
            "properties": {
                "trimester": {"type": "string"},
                "availability": {"type": "object"},
                "locations": {"type": "object"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
