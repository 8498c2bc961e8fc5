// Package docs is generated by swag from the handler annotations in
// contexts/governance/review-workflow/adapters/http. Regenerate with
// `swag init -g internal/platform/httpserver/server.go -o internal/platform/httpserver/docs`.
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
        "/v1/review-requests": {
            "post": {
                "description": "Opens an architectural review request in its workflow's initial status.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["review-workflow"],
                "summary": "Create a review request",
                "parameters": [
                    {"type": "string", "description": "Owner id", "name": "X-Actor-Id", "in": "header", "required": true},
                    {"description": "Request payload", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateRequestRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.RequestResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/review-requests/{request_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["review-workflow"],
                "summary": "Get a review request",
                "parameters": [
                    {"type": "string", "description": "Request id", "name": "request_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.RequestResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/review-requests/{request_id}/transitions": {
            "post": {
                "description": "Validates and applies a transition. A rejected transition returns 200 with allowed=false and the decision code.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["review-workflow"],
                "summary": "Request a status change",
                "parameters": [
                    {"type": "string", "description": "Acting member id", "name": "X-Actor-Id", "in": "header", "required": true},
                    {"type": "string", "description": "Request id", "name": "request_id", "in": "path", "required": true},
                    {"description": "Target status", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.TransitionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/review-requests/{request_id}/votes": {
            "get": {
                "produces": ["application/json"],
                "tags": ["review-workflow"],
                "summary": "List live votes of the current review cycle",
                "parameters": [
                    {"type": "string", "description": "Request id", "name": "request_id", "in": "path", "required": true},
                    {"type": "string", "description": "Review stage, defaults to the current status", "name": "stage", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.VotesResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["review-workflow"],
                "summary": "Cast a vote on the open review stage",
                "parameters": [
                    {"type": "string", "description": "Reviewer id", "name": "X-Actor-Id", "in": "header", "required": true},
                    {"type": "string", "description": "Request id", "name": "request_id", "in": "path", "required": true},
                    {"description": "Vote value: approve, deny, return, abstain", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CastVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.CastVoteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/review-requests/{request_id}/projection": {
            "get": {
                "description": "Display hints only; never used to resolve a stage.",
                "produces": ["application/json"],
                "tags": ["review-workflow"],
                "summary": "Project the open stage's possible outcomes",
                "parameters": [
                    {"type": "string", "description": "Request id", "name": "request_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ProjectionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "http.CreateRequestRequest": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "description": {"type": "string"},
                "workflow_version": {"type": "integer"}
            }
        },
        "http.RequestResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "owner_id": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string"},
                "workflow_version": {"type": "integer"},
                "stage": {"type": "string"},
                "review_cycle": {"type": "integer"},
                "review_deadline": {"type": "string"},
                "auto_approved_reason": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "http.TransitionRequest": {
            "type": "object",
            "properties": {
                "to_status": {"type": "string"}
            }
        },
        "http.TransitionResponse": {
            "type": "object",
            "properties": {
                "allowed": {"type": "boolean"},
                "code": {"type": "string"},
                "reason": {"type": "string"},
                "applied": {"type": "boolean"},
                "no_op": {"type": "boolean"},
                "already_resolved": {"type": "boolean"},
                "auto_advanced": {"type": "boolean"},
                "request": {"$ref": "#/definitions/http.RequestResponse"}
            }
        },
        "http.CastVoteRequest": {
            "type": "object",
            "properties": {
                "value": {"type": "string"}
            }
        },
        "http.TallyResponse": {
            "type": "object",
            "properties": {
                "outcome": {"type": "string"},
                "approve": {"type": "integer"},
                "deny": {"type": "integer"},
                "return": {"type": "integer"},
                "abstain": {"type": "integer"},
                "active_voters": {"type": "integer"},
                "majority_needed": {"type": "integer"},
                "all_votes_cast": {"type": "boolean"}
            }
        },
        "http.VoteResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "stage": {"type": "string"},
                "cycle": {"type": "integer"},
                "voter_id": {"type": "string"},
                "value": {"type": "string"},
                "cast_at": {"type": "string"}
            }
        },
        "http.CastVoteResponse": {
            "type": "object",
            "properties": {
                "vote": {"$ref": "#/definitions/http.VoteResponse"},
                "replaced": {"type": "boolean"},
                "tally": {"$ref": "#/definitions/http.TallyResponse"},
                "transition": {"$ref": "#/definitions/http.TransitionResponse"}
            }
        },
        "http.VotesResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/http.VoteResponse"}}
            }
        },
        "http.ProjectionResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "stage": {"type": "string"},
                "cycle": {"type": "integer"},
                "eligible": {"type": "integer"},
                "tally": {"$ref": "#/definitions/http.TallyResponse"},
                "remaining_votes": {"type": "integer"},
                "approval_possible": {"type": "boolean"},
                "denial_possible": {"type": "boolean"},
                "return_possible": {"type": "boolean"},
                "leading_outcome": {"type": "string"}
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
	Title:            "HOA Review Workflow API",
	Description:      "Architectural review requests, votes and outcome projections.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
