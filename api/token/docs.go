// Package token holds the Swagger document of the token service. It is
// regenerated with `swag init -g internal/token/http/router.go -o api/token`.
package token

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/tollgate"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/tokensdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/tokensdk.HealthResponse"}},
                    "503": {"description": "service not ready", "schema": {"$ref": "#/definitions/tokensdk.HealthResponse"}}
                }
            }
        },
        "/v1/token/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Token"],
                "summary": "Generate Token Pair",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/tokensdk.GenerateTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/tokensdk.TokenPair"}},
                    "400": {"description": "invalid_argument", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}},
                    "429": {"description": "resource_exhausted", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}},
                    "500": {"description": "internal", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}}
                }
            }
        },
        "/v1/token/parse": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Token"],
                "summary": "Parse Token",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/tokensdk.ParseTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/tokensdk.ParseTokenResponse"}},
                    "400": {"description": "invalid_argument", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}},
                    "429": {"description": "resource_exhausted", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}}
                }
            }
        },
        "/v1/token/refresh": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Token"],
                "summary": "Refresh Token Pair",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/tokensdk.RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/tokensdk.TokenPair"}},
                    "400": {"description": "invalid_argument: wrong kind, expired, bad signature", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}},
                    "429": {"description": "resource_exhausted", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}},
                    "500": {"description": "internal", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}}
                }
            }
        },
        "/v1/token/clear": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["Token"],
                "summary": "Clear Cached Pair",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/tokensdk.ClearCacheRequest"}}
                ],
                "responses": {
                    "204": {"description": "Cache cleared"},
                    "400": {"description": "invalid_argument", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}},
                    "500": {"description": "internal", "schema": {"$ref": "#/definitions/tokensdk.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "tokensdk.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "tokensdk.Payload": {
            "type": "object",
            "properties": {
                "sub": {"type": "string"},
                "group": {"type": "string"},
                "extra": {"type": "string"}
            }
        },
        "tokensdk.Token": {
            "type": "object",
            "properties": {
                "value": {"type": "string"},
                "kind": {"type": "string", "enum": ["access", "refresh"]}
            }
        },
        "tokensdk.TokenPair": {
            "type": "object",
            "properties": {
                "access": {"$ref": "#/definitions/tokensdk.Token"},
                "refresh": {"$ref": "#/definitions/tokensdk.Token"}
            }
        },
        "tokensdk.GenerateTokenRequest": {
            "type": "object",
            "properties": {
                "sub": {"type": "string"},
                "aud": {"type": "string"},
                "jti": {"type": "boolean"},
                "payload": {"$ref": "#/definitions/tokensdk.Payload"}
            }
        },
        "tokensdk.ParseTokenRequest": {
            "type": "object",
            "properties": {
                "value": {"type": "string"}
            }
        },
        "tokensdk.ParseTokenResponse": {
            "type": "object",
            "properties": {
                "checked": {"type": "boolean"},
                "expired": {"type": "boolean"},
                "kind": {"type": "string", "enum": ["access", "refresh"]},
                "payload": {"$ref": "#/definitions/tokensdk.Payload"}
            }
        },
        "tokensdk.RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "value": {"type": "string"}
            }
        },
        "tokensdk.ClearCacheRequest": {
            "type": "object",
            "properties": {
                "sub": {"type": "string"}
            }
        },
        "tokensdk.HealthChecks": {
            "type": "object",
            "properties": {
                "cache": {"type": "string"},
                "registry": {"type": "string"}
            }
        },
        "tokensdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"},
                "checks": {"$ref": "#/definitions/tokensdk.HealthChecks"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:3000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Tollgate Token Service API",
	Description:      "Issues, parses, refreshes and revokes HMAC-signed access/refresh token pairs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
