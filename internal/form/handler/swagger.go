package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the OpenAPI description of the form API and a
// Swagger UI page that loads it.
func RegisterSwagger(r gin.IRouter) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})
	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>fooforms — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({ url: '/swagger/doc.json', dom_id: '#swagger-ui' })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "fooforms-forms", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Form": {
        "type": "object",
        "required": ["displayName"],
        "properties": {
          "id": {"type": "string", "readOnly": true},
          "displayName": {"type": "string"},
          "title": {"type": "string"},
          "icon": {"type": "string"},
          "description": {"type": "string"},
          "btnLabel": {"type": "string"},
          "settings": {"type": "object", "additionalProperties": true},
          "fields": {"type": "array", "items": {"type": "object", "additionalProperties": true}},
          "postStream": {"type": "array", "items": {"type": "string"}},
          "version": {"type": "integer", "readOnly": true},
          "created": {"type": "string", "format": "date-time", "readOnly": true},
          "lastModified": {"type": "string", "format": "date-time", "readOnly": true},
          "url": {"type": "string", "readOnly": true}
        }
      },
      "ValidationError": {
        "type": "object",
        "properties": {"error": {"type": "string"}, "errors": {"type": "object", "additionalProperties": {"type": "string"}}}
      }
    }
  },
  "paths": {
    "/api/forms": {
      "get": { "summary": "List forms", "parameters": [{"name": "stream", "in": "query", "schema": {"type": "string"}}, {"name": "limit", "in": "query", "schema": {"type": "integer"}}], "responses": { "200": { "description": "forms" } } },
      "post": { "summary": "Create a form", "requestBody": { "content": { "application/json": { "schema": {"$ref": "#/components/schemas/Form"} } } }, "responses": { "201": { "description": "created" }, "400": { "description": "validation error" } } }
    },
    "/api/forms/{id}": {
      "get": { "summary": "Get a form", "responses": { "200": { "description": "form" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Update a form (bumps version)", "responses": { "200": { "description": "form" }, "400": { "description": "validation error" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a form", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/forms/{id}/icon": {
      "get": { "summary": "Redirect to a short-lived icon download URL", "responses": { "302": { "description": "redirect" }, "404": { "description": "no icon" } } },
      "post": { "summary": "Upload the form icon (multipart field 'file')", "responses": { "200": { "description": "form" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
