package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Civic Report API",
        "description": "Citizens report civic issues with a photo and location; administrators track them on a live dashboard.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"},
        "APIKey": {"type": "apiKey", "in": "header", "name": "apikey"}
    },
    "tags": [
        {"name": "Authentication", "description": "Sign in, sign up and session management"},
        {"name": "Issues", "description": "Issue reporting and administration"},
        {"name": "Dashboard", "description": "Filtered issue views, one-shot and live"},
        {"name": "Geocoding", "description": "Reverse geocoding preview"},
        {"name": "System", "description": "Health and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {"tags": ["System"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"tags": ["System"], "summary": "Readiness check", "responses": {"200": {"description": "Ready"}, "503": {"description": "A dependency is down"}}}
        },
        "/metrics": {
            "get": {"tags": ["System"], "summary": "Prometheus metrics", "produces": ["text/plain"], "responses": {"200": {"description": "OK"}}}
        },
        "/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign in",
                "security": [{"APIKey": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials or unconfirmed email", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Backend not configured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign up",
                "security": [{"APIKey": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Signed up and signed in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Email confirmation required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate tokens",
                "security": [{"APIKey": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid refresh token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign out",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {"204": {"description": "Signed out"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current identity",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/report": {
            "post": {
                "tags": ["Issues"],
                "summary": "Report an issue",
                "consumes": ["multipart/form-data"],
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [
                    {"name": "photo", "in": "formData", "type": "file", "required": true},
                    {"name": "category", "in": "formData", "type": "string", "required": true, "enum": ["pothole", "garbage", "sewage", "streetlight", "others"]},
                    {"name": "description", "in": "formData", "type": "string", "required": true},
                    {"name": "latitude", "in": "formData", "type": "number", "required": true},
                    {"name": "longitude", "in": "formData", "type": "number", "required": true},
                    {"name": "address", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Storage rejected the report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard snapshot",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["all", "pending", "in-progress", "resolved"]},
                    {"name": "category", "in": "query", "type": "string", "enum": ["all", "pothole", "garbage", "sewage", "streetlight", "others"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard/live": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Live dashboard WebSocket",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [
                    {"name": "access_token", "in": "query", "type": "string"},
                    {"name": "apikey", "in": "query", "type": "string"}
                ],
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/api/v1/issues": {
            "get": {
                "tags": ["Issues"],
                "summary": "List issues",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [{"name": "scope", "in": "query", "type": "string", "enum": ["own", "all"]}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/issues/{id}": {
            "get": {
                "tags": ["Issues"],
                "summary": "Get issue",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/issues/{id}/status": {
            "patch": {
                "tags": ["Issues"],
                "summary": "Change issue status",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateIssueStatusRequest"}}
                ],
                "responses": {
                    "204": {"description": "Updated"},
                    "403": {"description": "Administrators only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Transition not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/issues/export": {
            "get": {
                "tags": ["Issues"],
                "summary": "Export issues",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "Attachment"}}
            }
        },
        "/api/v1/geocode": {
            "get": {
                "tags": ["Geocoding"],
                "summary": "Reverse geocode",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "parameters": [
                    {"name": "lat", "in": "query", "type": "number", "required": true},
                    {"name": "lng", "in": "query", "type": "number", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Metrics summary",
                "security": [{"APIKey": [], "BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "confirm_password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "confirm_password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {"refresh_token": {"type": "string"}}
        },
        "UpdateIssueStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["pending", "in-progress", "resolved"]},
                "adminNotes": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
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
