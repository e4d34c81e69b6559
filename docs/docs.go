// Package docs registers the OpenAPI description served at /swagger/*any.
// Regenerate with: swag init -g cmd/main.go
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
		"/health": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Health check",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/oauth/token": {
			"post": {
				"tags": [
					"OAuth2"
				],
				"summary": "OAuth2 token endpoint (password grant)",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/token/login": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Obtain an auth token",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/token/logout": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Revoke the presented token",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				]
			}
		},
		"/api/users": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "List users",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "page",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "limit",
						"in": "query"
					}
				]
			},
			"post": {
				"tags": [
					"users"
				],
				"summary": "Register a new user",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				}
			}
		},
		"/api/users/me": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Current user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				]
			}
		},
		"/api/users/set_password": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Change password",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				]
			}
		},
		"/api/users/subscriptions": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Authors the requester follows",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "page",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "limit",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "recipes_limit",
						"in": "query"
					}
				]
			}
		},
		"/api/users/{id}": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Get user by ID",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/users/{id}/subscribe": {
			"post": {
				"tags": [
					"relationships"
				],
				"summary": "Subscribe to an author",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"tags": [
					"relationships"
				],
				"summary": "Unsubscribe",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/recipes": {
			"get": {
				"tags": [
					"recipes"
				],
				"summary": "List recipes",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"name": "page",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "limit",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "author",
						"in": "query"
					},
					{
						"type": "array",
						"items": {
							"type": "string"
						},
						"collectionFormat": "multi",
						"name": "tags",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "is_favorited",
						"in": "query"
					},
					{
						"type": "integer",
						"name": "is_in_shopping_cart",
						"in": "query"
					}
				]
			},
			"post": {
				"tags": [
					"recipes"
				],
				"summary": "Create a recipe",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				]
			}
		},
		"/api/recipes/download_shopping_cart": {
			"get": {
				"tags": [
					"recipes"
				],
				"summary": "Download the shopping list",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				]
			}
		},
		"/api/recipes/{id}": {
			"get": {
				"tags": [
					"recipes"
				],
				"summary": "Get recipe by ID",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"patch": {
				"tags": [
					"recipes"
				],
				"summary": "Update a recipe",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"tags": [
					"recipes"
				],
				"summary": "Delete a recipe",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/recipes/{id}/favorite": {
			"post": {
				"tags": [
					"relationships"
				],
				"summary": "Add to favorite",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"tags": [
					"relationships"
				],
				"summary": "Remove from favorite",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/recipes/{id}/shopping_cart": {
			"post": {
				"tags": [
					"relationships"
				],
				"summary": "Add to shopping cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"delete": {
				"tags": [
					"relationships"
				],
				"summary": "Remove from shopping cart",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/tags": {
			"get": {
				"tags": [
					"tags"
				],
				"summary": "List tags",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/tags/{id}": {
			"get": {
				"tags": [
					"tags"
				],
				"summary": "Get tag by ID",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/ingredients": {
			"get": {
				"tags": [
					"ingredients"
				],
				"summary": "List ingredients",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "search",
						"in": "query"
					}
				]
			}
		},
		"/api/ingredients/{id}": {
			"get": {
				"tags": [
					"ingredients"
				],
				"summary": "Get ingredient by ID",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"parameters": [
					{
						"type": "integer",
						"description": "ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/admin/clients": {
			"get": {
				"tags": [
					"OAuth2 Clients"
				],
				"summary": "List OAuth2 clients",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				]
			},
			"post": {
				"tags": [
					"OAuth2 Clients"
				],
				"summary": "Create OAuth2 client",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				]
			}
		},
		"/api/admin/clients/{id}": {
			"delete": {
				"tags": [
					"OAuth2 Clients"
				],
				"summary": "Delete OAuth2 client",
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "No Content"
					}
				},
				"security": [
					{
						"TokenAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		}
	},
	"securityDefinitions": {
		"TokenAuth": {
			"description": "Type \"Token\" followed by a space and the auth_token from /api/auth/token/login.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:		  "1.0",
	Host:			 "localhost:8080",
	BasePath:		 "/",
	Schemes:		  []string{},
	Title:			"Foodgram API",
	Description:	  "Recipe sharing: recipes, favorites, shopping lists and subscriptions",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:		"{{",
	RightDelim:	   "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
