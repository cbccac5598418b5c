package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tennis Club API",
        "description": "Court scheduling, bookings and slot generation for tennis centers.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Trainings", "description": "Bookings, status changes and balances"},
        {"name": "Centers", "description": "Centers, courts and working hours"},
        {"name": "Slots", "description": "Asynchronous slot generation"}
    ],
    "parameters": {
        "UserID": {"name": "X-User-ID", "in": "header", "type": "string", "description": "Acting user id set by the gateway"},
        "PathID": {"name": "id", "in": "path", "type": "string", "required": true}
    },
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
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/trainings": {
            "get": {
                "tags": ["Trainings"],
                "summary": "List trainings",
                "parameters": [
                    {"name": "centerId", "in": "query", "type": "string"},
                    {"name": "courtId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "kind", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "from", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Trainings"],
                "summary": "Create training",
                "parameters": [
                    {"$ref": "#/parameters/UserID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTrainingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "402": {"description": "Insufficient balance", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Trainings"],
                "summary": "Apply one patch to several trainings atomically",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkUpdateTrainingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trainings/{id}": {
            "get": {
                "tags": ["Trainings"],
                "summary": "Get training",
                "parameters": [{"$ref": "#/parameters/PathID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Trainings"],
                "summary": "Update training",
                "parameters": [
                    {"$ref": "#/parameters/PathID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTrainingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Trainings"],
                "summary": "Delete a training that never left new or unavailable",
                "parameters": [{"$ref": "#/parameters/PathID"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Delete forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trainings/{id}/status": {
            "post": {
                "tags": ["Trainings"],
                "summary": "Change training status",
                "parameters": [
                    {"$ref": "#/parameters/PathID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Transition not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/customers/{id}/balance": {
            "get": {
                "tags": ["Trainings"],
                "summary": "Customer balance",
                "parameters": [{"$ref": "#/parameters/PathID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/centers": {
            "get": {
                "tags": ["Centers"],
                "summary": "List centers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Centers"],
                "summary": "Create center or court",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CenterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Name taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/centers/{id}": {
            "get": {
                "tags": ["Centers"],
                "summary": "Get center or court",
                "parameters": [{"$ref": "#/parameters/PathID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Centers"],
                "summary": "Replace center or court",
                "parameters": [
                    {"$ref": "#/parameters/PathID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CenterRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/centers/{id}/courts": {
            "get": {
                "tags": ["Centers"],
                "summary": "List courts of a center",
                "parameters": [{"$ref": "#/parameters/PathID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/centers/{id}/products": {
            "get": {
                "tags": ["Centers"],
                "summary": "List products of a center",
                "parameters": [{"$ref": "#/parameters/PathID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/slots/request": {
            "post": {
                "tags": ["Slots"],
                "summary": "Queue slot generation for the caller's center",
                "parameters": [
                    {"$ref": "#/parameters/UserID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SlotRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing X-User-ID", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/slots/jobs/{id}": {
            "get": {
                "tags": ["Slots"],
                "summary": "Get generation job",
                "parameters": [{"$ref": "#/parameters/PathID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "WeeklyHours": {
            "type": "object",
            "description": "ISO weekday (1 = Monday) to HH:MM-HH:MM intervals",
            "additionalProperties": {"type": "array", "items": {"type": "string"}},
            "example": {"1": ["08:00-20:00"]}
        },
        "CreateTrainingRequest": {
            "type": "object",
            "properties": {
                "courtId": {"type": "string"},
                "productId": {"type": "string"},
                "instructorId": {"type": "string"},
                "customerIds": {"type": "array", "items": {"type": "string"}},
                "timeBegin": {"type": "string", "format": "date-time"},
                "timeFinish": {"type": "string", "format": "date-time"},
                "name": {"type": "string"},
                "pricePerHourTotal": {"type": "number"},
                "repeatFrequency": {"type": "string", "enum": ["one_time", "daily", "weekly", "monthly"]},
                "repeatUntil": {"type": "string", "format": "date-time"}
            },
            "required": ["courtId", "productId", "instructorId", "customerIds", "timeBegin", "timeFinish"]
        },
        "UpdateTrainingRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "productId": {"type": "string"},
                "instructorId": {"type": "string"},
                "customerIds": {"type": "array", "items": {"type": "string"}},
                "timeBegin": {"type": "string", "format": "date-time"},
                "timeFinish": {"type": "string", "format": "date-time"},
                "pricePerHourTotal": {"type": "number"},
                "repeatFrequency": {"type": "string"},
                "repeatUntil": {"type": "string", "format": "date-time"},
                "status": {"type": "string"}
            }
        },
        "BulkUpdateTrainingRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "string"}},
                "patch": {"$ref": "#/definitions/UpdateTrainingRequest"}
            },
            "required": ["ids"]
        },
        "ChangeStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["new", "waiting_approve_reserve", "reserved", "done", "waiting_approve_cancel", "cancelled", "unavailable"]}
            },
            "required": ["status"]
        },
        "CenterRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "isCenter": {"type": "boolean"},
                "parentCenterId": {"type": "string"},
                "timezone": {"type": "string"},
                "workingHoursLocal": {"$ref": "#/definitions/WeeklyHours"},
                "workingHoursUtc": {"$ref": "#/definitions/WeeklyHours"}
            },
            "required": ["name"]
        },
        "SlotRequest": {
            "type": "object",
            "properties": {
                "dates": {"type": "array", "items": {"type": "string", "format": "date"}}
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
