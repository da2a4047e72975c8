package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Profile API",
        "description": "Student profile service with cross-service account provisioning",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student records and account provisioning"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "Unavailable"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register student with login account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Admission number already used", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Auth service unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Deactivate student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/students/{id}/accept": {
            "post": {
                "tags": ["Students"],
                "summary": "Accept pending application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AcceptApplicationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No pending application", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Auth service unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/documents": {
            "post": {
                "tags": ["Students"],
                "summary": "Upload student document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Student": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "school_id": {"type": "string"},
                "user_id": {"type": "string"},
                "admission_number": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "gender": {"type": "string"},
                "birth_date": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "status": {"type": "string"},
                "active": {"type": "boolean"},
                "admission_date": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "GuardianInput": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "relation": {"type": "string"},
                "phone": {"type": "string"},
                "email": {"type": "string"}
            },
            "required": ["full_name", "relation"]
        },
        "EnrollmentInput": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "section_id": {"type": "string"},
                "academic_year": {"type": "string"},
                "roll_number": {"type": "string"}
            },
            "required": ["class_id", "section_id", "academic_year"]
        },
        "DocumentInput": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "url": {"type": "string"},
                "mime_type": {"type": "string"},
                "size": {"type": "integer"}
            },
            "required": ["name", "url"]
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "admission_number": {"type": "string"},
                "admission_date": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "gender": {"type": "string"},
                "birth_date": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "guardians": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/GuardianInput"}
                },
                "enrollment": {"$ref": "#/definitions/EnrollmentInput"},
                "documents": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/DocumentInput"}
                }
            },
            "required": ["admission_number", "admission_date", "first_name", "last_name", "gender", "birth_date", "email", "phone", "enrollment"]
        },
        "AcceptApplicationRequest": {
            "type": "object",
            "properties": {
                "admission_number": {"type": "string"},
                "admission_date": {"type": "string"},
                "enrollment": {"$ref": "#/definitions/EnrollmentInput"}
            },
            "required": ["admission_number", "admission_date", "enrollment"]
        },
        "UpdateStudentRequest": {
            "type": "object",
            "properties": {
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "gender": {"type": "string"},
                "birth_date": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "active": {"type": "boolean"}
            },
            "required": ["first_name", "last_name", "gender", "birth_date", "email", "phone"]
        },
        "Identity": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "role_id": {"type": "string"},
                "school_id": {"type": "string"}
            }
        },
        "ProvisionResponse": {
            "type": "object",
            "properties": {
                "student": {"$ref": "#/definitions/Student"},
                "identity": {"$ref": "#/definitions/Identity"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
