// Package docs holds the swagger document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "user", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "User registered", "schema": {"$ref": "#/definitions/Response"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/Response"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Log in with email and password",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "credentials", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/Response"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate a refresh token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "token", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/Response"}},
                    "401": {"description": "Invalid refresh token", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Profile", "schema": {"$ref": "#/definitions/Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Authentication"],
                "summary": "Revoke all refresh tokens of the current user",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Logged out", "schema": {"$ref": "#/definitions/Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/tasks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "List active tasks",
                "description": "Non-deleted tasks of the current user, newest first, with owner name and email",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Tasks and count", "schema": {"$ref": "#/definitions/Response"}},
                    "500": {"description": "Store failure", "schema": {"$ref": "#/definitions/Response"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Create a task",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "task", "required": true, "schema": {"$ref": "#/definitions/TaskInput"}}
                ],
                "responses": {
                    "201": {"description": "Task created", "schema": {"$ref": "#/definitions/Response"}},
                    "400": {"description": "Missing title, invalid status or invalid priority", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/tasks/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Task counts by status",
                "description": "total counts soft-deleted tasks, the status buckets count active tasks only",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Statistics", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/tasks/view": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Filtered and paginated table view",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "priority", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "pageSize", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Table page", "schema": {"$ref": "#/definitions/Response"}},
                    "400": {"description": "Malformed query", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/tasks/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Get a task",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Task", "schema": {"$ref": "#/definitions/Response"}},
                    "404": {"description": "Task not found", "schema": {"$ref": "#/definitions/Response"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Update a task",
                "description": "Empty title and description are ignored; ownerId may be set to null",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true},
                    {"in": "body", "name": "task", "required": true, "schema": {"$ref": "#/definitions/TaskInput"}}
                ],
                "responses": {
                    "200": {"description": "Updated task", "schema": {"$ref": "#/definitions/Response"}},
                    "400": {"description": "Invalid status or priority", "schema": {"$ref": "#/definitions/Response"}},
                    "404": {"description": "Task not found", "schema": {"$ref": "#/definitions/Response"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Soft delete a task",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Task deleted successfully", "schema": {"$ref": "#/definitions/Response"}},
                    "404": {"description": "Task not found", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/tasks/deleteTask/{id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Soft delete a task",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Task deleted successfully", "schema": {"$ref": "#/definitions/Response"}},
                    "404": {"description": "Task not found", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        }
    },
    "definitions": {
        "Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "message": {"type": "string"},
                "count": {"type": "integer"}
            }
        },
        "RegisterRequest": {
            "type": "object",
            "required": ["name", "email", "password"],
            "properties": {
                "name": {"type": "string", "example": "Ada Lovelace"},
                "email": {"type": "string", "example": "ada@example.com"},
                "password": {"type": "string", "example": "secret123"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "ada@example.com"},
                "password": {"type": "string", "example": "secret123"}
            }
        },
        "RefreshRequest": {
            "type": "object",
            "required": ["refreshToken"],
            "properties": {
                "refreshToken": {"type": "string"}
            }
        },
        "TaskInput": {
            "type": "object",
            "properties": {
                "title": {"type": "string", "example": "Write report"},
                "description": {"type": "string"},
                "status": {"type": "string", "enum": ["Todo", "In Progress", "Completed"]},
                "priority": {"type": "string", "enum": ["None", "Low", "Medium", "High"]},
                "ownerId": {"type": "integer"},
                "startDate": {"type": "string", "example": "2024-03-01"},
                "endDate": {"type": "string", "example": "2024-03-08"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type 'Bearer' followed by a space and JWT token"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:5001",
	BasePath:         "/api",
	Schemes:          []string{"http"},
	Title:            "Taskboard API",
	Description:      "Personal task tracking: tasks, soft delete, status statistics",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
