// Package docs registers the swagger document served under /swagger.
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
        "/api/auth": {
            "post": {
                "summary": "Exchange credentials for a bearer token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "credentials", "required": true, "schema": {"$ref": "#/definitions/AuthRequest"}}],
                "responses": {"200": {"description": "token issued"}, "400": {"description": "invalid payload"}, "401": {"description": "bad credentials"}}
            }
        },
        "/v1/books": {
            "get": {
                "summary": "List all books",
                "produces": ["application/json"],
                "responses": {"200": {"description": "books"}}
            },
            "post": {
                "summary": "Create a book",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "book", "required": true, "schema": {"$ref": "#/definitions/Book"}}],
                "responses": {"201": {"description": "created"}, "400": {"description": "invalid payload"}, "409": {"description": "isbn already used"}}
            }
        },
        "/v1/books/search": {
            "get": {
                "summary": "Search books by title, author or isbn",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "title", "type": "string"},
                    {"in": "query", "name": "author", "type": "string"},
                    {"in": "query", "name": "isbn", "type": "string"}
                ],
                "responses": {"200": {"description": "matching books"}}
            }
        },
        "/v1/books/{id}": {
            "get": {
                "summary": "Fetch a book",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "book"}, "400": {"description": "invalid id"}, "404": {"description": "not found"}}
            },
            "put": {
                "summary": "Replace a book",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "body", "name": "book", "required": true, "schema": {"$ref": "#/definitions/Book"}}
                ],
                "responses": {"200": {"description": "updated"}, "400": {"description": "invalid payload"}, "404": {"description": "not found"}, "409": {"description": "isbn already used"}}
            },
            "delete": {
                "summary": "Delete a book",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"204": {"description": "deleted"}, "404": {"description": "not found"}}
            }
        },
        "/v1/categories": {
            "get": {"summary": "List categories", "responses": {"200": {"description": "categories"}}},
            "post": {
                "summary": "Create a category",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "category", "required": true, "schema": {"$ref": "#/definitions/Category"}}],
                "responses": {"201": {"description": "created"}, "409": {"description": "name already used"}}
            }
        },
        "/v1/products": {
            "get": {"summary": "List products", "responses": {"200": {"description": "products"}}},
            "post": {
                "summary": "Create a product",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "product", "required": true, "schema": {"$ref": "#/definitions/Product"}}],
                "responses": {"201": {"description": "created"}, "404": {"description": "unknown category"}}
            }
        },
        "/v1/products/search": {
            "get": {
                "summary": "Search products by name or category",
                "parameters": [
                    {"in": "query", "name": "name", "type": "string"},
                    {"in": "query", "name": "category", "type": "string"}
                ],
                "responses": {"200": {"description": "matching products"}}
            }
        },
        "/v1/reviews": {
            "post": {
                "summary": "Review a product",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "review", "required": true, "schema": {"$ref": "#/definitions/Review"}}],
                "responses": {"201": {"description": "created"}, "404": {"description": "unknown product"}}
            }
        },
        "/v1/reviews/{productId}": {
            "get": {
                "summary": "List the reviews of a product",
                "parameters": [{"in": "path", "name": "productId", "required": true, "type": "string"}],
                "responses": {"200": {"description": "reviews"}}
            }
        },
        "/notify": {
            "post": {
                "summary": "Queue a notification",
                "parameters": [{"in": "body", "name": "notification", "required": true, "schema": {"$ref": "#/definitions/Notification"}}],
                "responses": {"202": {"description": "accepted"}, "400": {"description": "invalid payload"}}
            }
        },
        "/healthNotification": {
            "get": {"summary": "Notification intake health", "responses": {"200": {"description": "UP"}}}
        }
    },
    "definitions": {
        "AuthRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "Book": {
            "type": "object",
            "properties": {
                "title": {"type": "string"}, "description": {"type": "string"}, "author": {"type": "string"},
                "isbn": {"type": "string"}, "price": {"type": "number"}, "publishedYear": {"type": "integer"}
            }
        },
        "Category": {
            "type": "object",
            "properties": {"name": {"type": "string"}, "description": {"type": "string"}}
        },
        "Product": {
            "type": "object",
            "properties": {
                "name": {"type": "string"}, "description": {"type": "string"},
                "price": {"type": "number"}, "categoryId": {"type": "string"}
            }
        },
        "Review": {
            "type": "object",
            "properties": {
                "productId": {"type": "string"}, "author": {"type": "string"},
                "rating": {"type": "integer"}, "comment": {"type": "string"}
            }
        },
        "Notification": {
            "type": "object",
            "properties": {
                "recipient": {"type": "string"}, "channel": {"type": "string", "enum": ["log", "webhook", "email"]},
                "subject": {"type": "string"}, "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Library Platform API",
	Description:      "Books, catalog, reviews and notifications services.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
