package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Homeroom API",
        "description": "Conduct ledger, weekly reporting and grade book for homeroom management",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Login and account management"},
        {"name": "Students", "description": "Student roster"},
        {"name": "Conduct", "description": "Violation and bonus ledger"},
        {"name": "Weeks", "description": "Week pointer and rollover"},
        {"name": "Reports", "description": "Score aggregation and rankings"},
        {"name": "Grades", "description": "Academic grade book"},
        {"name": "Catalog", "description": "Violation and bonus type catalogs"},
        {"name": "Classes", "description": "Class labels"},
        {"name": "Subjects", "description": "Subject catalog"},
        {"name": "Chat", "description": "Assistant facade"},
        {"name": "Transfer", "description": "Spreadsheet import and file export"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a teacher",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students in scope",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conduct/events": {
            "post": {
                "tags": ["Conduct"],
                "summary": "Apply one ledger event",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Student outside assigned scope"}
                }
            }
        },
        "/weeks/end": {
            "post": {
                "tags": ["Weeks"],
                "summary": "Archive the live week and roll the pointer forward",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/rankings": {
            "get": {
                "tags": ["Reports"],
                "summary": "Weekly class leaderboard",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
