// Package docs registers the OpenAPI description served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/cases": {
            "get": {"summary": "List candidacy cases", "tags": ["candidacy"], "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Submit a candidacy case", "tags": ["candidacy"], "responses": {"201": {"description": "Created"}, "409": {"description": "Active case exists"}}}
        },
        "/cases/{case_id}/review": {
            "post": {"summary": "Mark a case reviewed", "tags": ["candidacy"], "responses": {"200": {"description": "OK"}}}
        },
        "/cases/{case_id}/approve": {
            "post": {"summary": "Approve a case and promote the applicant", "tags": ["candidacy"], "responses": {"200": {"description": "OK"}}}
        },
        "/cases/{case_id}/reject": {
            "post": {"summary": "Reject a case", "tags": ["candidacy"], "responses": {"200": {"description": "OK"}}}
        },
        "/cases/{case_id}/screening-outcome": {
            "post": {"summary": "Record the screening outcome", "tags": ["candidacy"], "responses": {"200": {"description": "OK"}}}
        },
        "/cases/{case_id}/appointment": {
            "post": {"summary": "Reserve a screening slot", "tags": ["screening"], "responses": {"201": {"description": "Created"}, "409": {"description": "Slot taken"}}}
        },
        "/cases/{case_id}/appointment/decision": {
            "post": {"summary": "Approve or reject an appointment", "tags": ["screening"], "responses": {"200": {"description": "OK"}}}
        },
        "/screening/slots/open": {
            "get": {"summary": "List open screening slots", "tags": ["screening"], "responses": {"200": {"description": "OK"}}}
        },
        "/roster": {
            "get": {"summary": "List roster entries", "tags": ["roster"], "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Create a roster entry from a passed case", "tags": ["roster"], "responses": {"201": {"description": "Created"}}}
        },
        "/ballot": {
            "get": {"summary": "Render the caller's ballot", "tags": ["voting"], "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Cast the caller's ballot", "tags": ["voting"], "responses": {"201": {"description": "Created"}, "409": {"description": "Ballot already cast"}, "422": {"description": "Invalid selections"}}}
        },
        "/results": {
            "get": {"summary": "Tabulate every position", "tags": ["results"], "responses": {"200": {"description": "OK"}}}
        },
        "/results/position": {
            "get": {"summary": "Tabulate one position", "tags": ["results"], "responses": {"200": {"description": "OK"}}}
        },
        "/phases/{phase}": {
            "get": {"summary": "Read a phase window", "tags": ["phases"], "responses": {"200": {"description": "OK"}}},
            "put": {"summary": "Set a phase window", "tags": ["phases"], "responses": {"200": {"description": "OK"}}}
        },
        "/archives": {
            "get": {"summary": "List archives", "tags": ["archive"], "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Archive and reset the election", "tags": ["archive"], "responses": {"201": {"description": "Created"}, "409": {"description": "Archive in progress"}, "500": {"description": "Archive incomplete"}}}
        },
        "/archive-runs/{run_id}/resume": {
            "post": {"summary": "Resume a failed archive run", "tags": ["archive"], "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Campus Election Administration API",
	Description:      "Candidacy review, screening, voting and tabulation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
