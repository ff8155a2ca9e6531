package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "MyGrades API",
        "description": "Grade aggregation, ledger, and export service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Aggregation", "description": "Category and course totals with explain traces"},
        {"name": "Grades", "description": "Grade capture, overrides, and audit history"},
        {"name": "Weights", "description": "Per-user weight overrides"},
        {"name": "Gradebook", "description": "Course tree, conversion maps, resits"},
        {"name": "AdminGrades", "description": "Administrative grade codes"},
        {"name": "Exports", "description": "Grade sheet exports and signed downloads"}
    ],
    "paths": {
        "/courses/{courseID}/categories/{categoryID}/users/{userID}/aggregation": {
            "get": {
                "tags": ["Aggregation"],
                "summary": "Aggregate one category for one user",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "categoryID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/users/{userID}/aggregation": {
            "get": {
                "tags": ["Aggregation"],
                "summary": "Aggregate every top level category for one user",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/categories/{categoryID}/users/{userID}/explain": {
            "get": {
                "tags": ["Aggregation"],
                "summary": "Explain trace of the latest aggregation",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "categoryID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/recalculate": {
            "post": {
                "tags": ["Aggregation"],
                "summary": "Queue a bulk recalculation of a course",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/RecalculateRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/progress": {
            "get": {
                "tags": ["Aggregation"],
                "summary": "Progress of the running recalculation",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/grades": {
            "post": {
                "tags": ["Grades"],
                "summary": "Write a grade record",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WriteGradeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/overrides": {
            "post": {
                "tags": ["Grades"],
                "summary": "Pin a category total to a manual value",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideCategoryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/categories/{categoryID}/users/{userID}/override": {
            "delete": {
                "tags": ["Grades"],
                "summary": "Remove a category override",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "categoryID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/items/{itemID}/users/{userID}/provisional": {
            "get": {
                "tags": ["Grades"],
                "summary": "Current provisional grade",
                "parameters": [
                    {"name": "itemID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/items/{itemID}/users/{userID}/history": {
            "get": {
                "tags": ["Grades"],
                "summary": "Full audit trail",
                "parameters": [
                    {"name": "itemID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/items/{itemID}/columns": {
            "get": {
                "tags": ["Grades"],
                "summary": "Column registry of one item",
                "parameters": [
                    {"name": "itemID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin-grades": {
            "get": {
                "tags": ["AdminGrades"],
                "summary": "Administrative grade codes selectable at a level",
                "parameters": [
                    {"name": "level", "in": "query", "type": "integer"},
                    {"name": "grandTotal", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin-grades/display": {
            "put": {
                "tags": ["AdminGrades"],
                "summary": "Change the display label of an administrative grade code",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAdminDisplayRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/items/{itemID}/users/{userID}/weight": {
            "get": {
                "tags": ["Weights"],
                "summary": "Effective weight of an item for one user",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "itemID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Weights"],
                "summary": "Remove the weight override",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "itemID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses/{courseID}/weights": {
            "put": {
                "tags": ["Weights"],
                "summary": "Override the weight of an item for one user",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetWeightRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/categories/{categoryID}/users/{userID}/weights": {
            "delete": {
                "tags": ["Weights"],
                "summary": "Remove every weight override below a category",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "categoryID", "in": "path", "required": true, "type": "string"},
                    {"name": "userID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/tree": {
            "get": {
                "tags": ["Gradebook"],
                "summary": "Category and item tree of a course",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/conversion-maps": {
            "post": {
                "tags": ["Gradebook"],
                "summary": "Replace the conversion map of an item",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ImportConversionMapRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses/{courseID}/categories/{categoryID}/resit": {
            "put": {
                "tags": ["Gradebook"],
                "summary": "Mark an item as the resit attempt of its category",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "categoryID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetResitRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            },
            "delete": {
                "tags": ["Gradebook"],
                "summary": "Clear the resit marking of a category",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "categoryID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses/{courseID}/export": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export the grade sheet of a course",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an exported grade sheet",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "WriteGradeRequest": {
            "type": "object",
            "properties": {
                "itemId": {"type": "string"},
                "userId": {"type": "string"},
                "columnType": {"type": "string"},
                "other": {"type": "string"},
                "rawGrade": {"type": "number"},
                "adminCode": {"type": "string"},
                "comment": {"type": "string"}
            },
            "required": ["itemId", "userId", "columnType"]
        },
        "OverrideCategoryRequest": {
            "type": "object",
            "properties": {
                "categoryId": {"type": "string"},
                "userId": {"type": "string"},
                "rawGrade": {"type": "number"},
                "adminCode": {"type": "string"},
                "comment": {"type": "string"}
            },
            "required": ["categoryId", "userId"]
        },
        "SetWeightRequest": {
            "type": "object",
            "properties": {
                "itemId": {"type": "string"},
                "userId": {"type": "string"},
                "weight": {"type": "number"}
            },
            "required": ["itemId", "userId"]
        },
        "SetResitRequest": {
            "type": "object",
            "properties": {
                "categoryId": {"type": "string"},
                "itemId": {"type": "string"}
            },
            "required": ["itemId"]
        },
        "ImportConversionMapRequest": {
            "type": "object",
            "properties": {
                "itemId": {"type": "string"},
                "schedule": {"type": "string"},
                "breakpoints": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ConversionBreakpointRequest"}
                }
            },
            "required": ["itemId", "schedule", "breakpoints"]
        },
        "ConversionBreakpointRequest": {
            "type": "object",
            "properties": {
                "threshold": {"type": "number"},
                "value": {"type": "number"},
                "label": {"type": "string"}
            },
            "required": ["label"]
        },
        "UpdateAdminDisplayRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "display": {"type": "string"},
                "description": {"type": "string"}
            },
            "required": ["code", "display"]
        },
        "RecalculateRequest": {
            "type": "object",
            "properties": {
                "categoryId": {"type": "string"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["format"]
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
