package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "StudyBridge API",
        "description": "Coordination platform for students studying abroad and their agents",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Registration, login and session management"},
        {"name": "Appointments", "description": "Consultation booking and decisions"},
        {"name": "Documents", "description": "Document exchange under approved appointments"},
        {"name": "Payments", "description": "Declared payment ledger"},
        {"name": "Reviews", "description": "Agent review ledger"},
        {"name": "Profiles", "description": "Student and agent profiles, agent directory"},
        {"name": "Listings", "description": "Universities, job openings and scholarships"},
        {"name": "Reports", "description": "Async exports with signed downloads"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Log in with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/appointments": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Book an appointment with an agent",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookAppointmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Time window already booked"}
                }
            }
        },
        "/appointments/my": {
            "get": {
                "tags": ["Appointments"],
                "summary": "List the caller's appointments",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appointments/{appointmentId}": {
            "put": {
                "tags": ["Appointments"],
                "summary": "Approve or reject a pending appointment",
                "parameters": [
                    {"name": "appointmentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideAppointmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Already decided"}
                }
            },
            "delete": {
                "tags": ["Appointments"],
                "summary": "Delete the caller's own appointment",
                "parameters": [
                    {"name": "appointmentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "400": {"description": "Approved appointments cannot be deleted"}
                }
            }
        },
        "/documents/appointment/{appointmentId}": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document under an approved appointment",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "appointmentId", "in": "path", "required": true, "type": "string"},
                    {"name": "description", "in": "formData", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Appointment not found or not approved"}
                }
            },
            "get": {
                "tags": ["Documents"],
                "summary": "List documents attached to an appointment",
                "parameters": [
                    {"name": "appointmentId", "in": "path", "required": true, "type": "string"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document's file content",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Not a party to the appointment"}
                }
            }
        },
        "/payments/agent/{agentId}": {
            "post": {
                "tags": ["Payments"],
                "summary": "Record a payment made to an agent",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "agentId", "in": "path", "required": true, "type": "string"},
                    {"name": "amount", "in": "formData", "required": true, "type": "number"},
                    {"name": "paid_on", "in": "formData", "required": true, "type": "string"},
                    {"name": "description", "in": "formData", "required": true, "type": "string"},
                    {"name": "institution", "in": "formData", "required": true, "type": "string"},
                    {"name": "notes", "in": "formData", "type": "string"},
                    {"name": "slip", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}": {
            "put": {
                "tags": ["Payments"],
                "summary": "Approve or reject a declared payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecidePaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Payments"],
                "summary": "Delete a pending or rejected payment declaration",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "400": {"description": "Approved payments cannot be deleted"}
                }
            }
        },
        "/reviews/agent/{agentId}": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Submit a review for an agent",
                "parameters": [
                    {"name": "agentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitReviewRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed"}
                }
            },
            "get": {
                "tags": ["Reviews"],
                "summary": "List reviews left for an agent",
                "parameters": [
                    {"name": "agentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/agents": {
            "get": {
                "tags": ["Profiles"],
                "summary": "Browse the public agent directory",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "country", "in": "query", "type": "string"},
                    {"name": "verified", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/universities": {
            "get": {
                "tags": ["Listings"],
                "summary": "List universities",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "country", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/generate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue an export job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished export via its signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "410": {"description": "Link expired"}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["name", "email", "password", "role"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "role": {"type": "string", "enum": ["STUDENT", "AGENT"]}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "BookAppointmentRequest": {
            "type": "object",
            "required": ["agent_id", "scheduled_at", "topic", "details"],
            "properties": {
                "agent_id": {"type": "string"},
                "scheduled_at": {"type": "string", "format": "date-time"},
                "topic": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "DecideAppointmentRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "message": {"type": "string"}
            }
        },
        "DecidePaymentRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["APPROVED", "REJECTED"]}
            }
        },
        "SubmitReviewRequest": {
            "type": "object",
            "required": ["rating", "comment"],
            "properties": {
                "rating": {"type": "integer", "minimum": 1, "maximum": 5},
                "comment": {"type": "string"}
            }
        },
        "ReportRequest": {
            "type": "object",
            "required": ["type", "format"],
            "properties": {
                "type": {"type": "string", "enum": ["agent_schedule", "payment_ledger"]},
                "agentId": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "dateFrom": {"type": "string", "format": "date-time"},
                "dateTo": {"type": "string", "format": "date-time"}
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
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "total": {"type": "integer"},
                "totalPages": {"type": "integer"}
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
