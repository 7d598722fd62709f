// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/api/v1/dashboard": {
            "get": {
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Dashboard snapshot",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Dashboard"}}}
            }
        },
        "/api/v1/sensors/{kind}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "One sensor",
                "parameters": [
                    {"enum": ["temperature", "humidity", "luminosity"], "type": "string", "description": "Sensor kind", "name": "kind", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SensorView"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/banner": {
            "get": {
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Alert banner",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.BannerView"}}}
            }
        },
        "/api/v1/events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "List alert events",
                "parameters": [
                    {"type": "string", "description": "Start of range", "name": "from", "in": "query"},
                    {"type": "string", "description": "End of range. Date-only treated as end of day.", "name": "to", "in": "query"},
                    {"enum": ["STATUS_CHANGE", "FETCH_FAILED"], "type": "string", "description": "Event type", "name": "type", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "count, events", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "models.ThresholdBand": {
            "type": "object",
            "properties": {"min": {"type": "number"}, "max": {"type": "number"}}
        },
        "models.ChartPoint": {
            "type": "object",
            "properties": {"timestamp": {"type": "string"}, "label": {"type": "string"}, "value": {"type": "number"}}
        },
        "models.SensorView": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "title": {"type": "string"},
                "unit": {"type": "string"},
                "value": {"type": "number"},
                "status": {"type": "string"},
                "level": {"type": "string"},
                "band": {"$ref": "#/definitions/models.ThresholdBand"},
                "points": {"type": "array", "items": {"$ref": "#/definitions/models.ChartPoint"}}
            }
        },
        "models.BannerView": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"type": "string"}},
                "active_index": {"type": "integer"},
                "active": {"type": "string"},
                "alert": {"type": "boolean"}
            }
        },
        "models.Dashboard": {
            "type": "object",
            "properties": {
                "ready": {"type": "boolean"},
                "sensors": {"type": "array", "items": {"$ref": "#/definitions/models.SensorView"}},
                "banner": {"$ref": "#/definitions/models.BannerView"},
                "last_updated": {"type": "string"},
                "last_error": {"type": "string"},
                "stale": {"type": "boolean"},
                "cycles": {"type": "integer"},
                "failed_cycles": {"type": "integer"},
                "generated_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Cellar Monitor API",
	Description:      "Temperature, humidity and luminosity dashboard fed by an STH-Comet broker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
