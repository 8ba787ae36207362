package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrollment KPI API",
        "description": "Enrollment ledger sync, KPI snapshots and dashboard reads",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Sync", "description": "Source reconciliation and metric recompute"},
        {"name": "Dashboard", "description": "Snapshot, campus and timeline reads"},
        {"name": "Settings", "description": "Reporting settings and source layout"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness and counter summary",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "summary": "Store and cache readiness",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/sync": {
            "post": {
                "tags": ["Sync"],
                "summary": "Reconcile source bases into the ledger",
                "parameters": [
                    {"name": "async", "in": "query", "type": "boolean"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/SyncRequest"}}
                ],
                "responses": {
                    "200": {"description": "Sync result", "schema": {"$ref": "#/definitions/Envelope"}},
                    "202": {"description": "Job queued", "schema": {"$ref": "#/definitions/Envelope"}},
                    "500": {"description": "Ledger write failed", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/sync/jobs/{id}": {
            "get": {
                "tags": ["Sync"],
                "summary": "Queued sync status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/metrics/{year}/recompute": {
            "post": {
                "tags": ["Sync"],
                "summary": "Recompute snapshot and timeline of one year",
                "parameters": [{"name": "year", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/dashboard/overview": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Latest snapshot of a school year",
                "parameters": [{"name": "schoolYear", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/dashboard/campus": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "One campus of the latest snapshot",
                "parameters": [
                    {"name": "schoolYear", "in": "query", "required": true, "type": "string"},
                    {"name": "campusKey", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/dashboard/yoy": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Comparable snapshot of every active year",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/dashboard/timeline": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Weekly cumulative enrollment",
                "parameters": [{"name": "schoolYear", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/dashboard/campuses": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Campuses of the latest snapshot",
                "parameters": [{"name": "schoolYear", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/snapshots/{year}": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Comparable snapshot of a year",
                "parameters": [
                    {"name": "year", "in": "path", "required": true, "type": "string"},
                    {"name": "campusKey", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/settings": {
            "get": {
                "tags": ["Settings"],
                "summary": "Reporting settings",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Update reporting settings",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AppSettingsPatch"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Invalid settings", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/settings/sources": {
            "get": {
                "tags": ["Settings"],
                "summary": "Source base layout",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Replace the source base layout",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        }
    },
    "definitions": {
        "SyncRequest": {
            "type": "object",
            "properties": {
                "schoolYear": {"type": "string", "example": "2024-25"},
                "skipMetrics": {"type": "boolean"}
            }
        },
        "AppSettingsPatch": {
            "type": "object",
            "properties": {
                "perStudentFunding": {"type": "number"},
                "countDayDate": {"type": "string", "example": "10-01"},
                "currentSchoolYear": {"type": "string", "example": "2025-26"},
                "activeSchoolYears": {"type": "array", "items": {"type": "string"}}
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
        "Envelope": {
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
