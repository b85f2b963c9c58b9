// Package docs 由 swag 注释生成的 OpenAPI 描述
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
        "/api/links": {
            "get": {
                "description": "按创建时间倒序返回链接，可按短码或目标 URL 过滤",
                "produces": ["application/json"],
                "tags": ["Links"],
                "summary": "链接列表",
                "parameters": [
                    {"type": "string", "description": "短码或 URL 包含的文本，不区分大小写", "name": "q", "in": "query"},
                    {"type": "integer", "description": "返回条数，0 表示全部", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "跳过条数，仅在 limit 大于 0 时生效", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Link"}}},
                    "400": {"description": "参数无效", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "500": {"description": "服务器内部错误", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "post": {
                "description": "为一个长 URL 创建短链接，可指定 6-8 位字母数字的自定义短码",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Links"],
                "summary": "创建短链接",
                "parameters": [
                    {"description": "目标 URL 与可选短码", "name": "link", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateLinkRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Link"}},
                    "400": {"description": "请求无效", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "短码已存在", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "500": {"description": "服务器内部错误", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/api/links/{code}": {
            "get": {
                "description": "按短码查询链接及其点击统计",
                "produces": ["application/json"],
                "tags": ["Links"],
                "summary": "链接详情",
                "parameters": [
                    {"type": "string", "description": "短码", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Link"}},
                    "404": {"description": "链接不存在", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Links"],
                "summary": "删除链接",
                "parameters": [
                    {"type": "string", "description": "短码", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.MessageResponse"}},
                    "404": {"description": "链接不存在", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/api/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Links"],
                "summary": "汇总统计",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/store.Stats"}},
                    "500": {"description": "服务器内部错误", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "description": "返回服务版本与运行时长；数据库不可用时返回 503",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/{code}": {
            "get": {
                "description": "记录一次点击并 302 跳转到目标 URL",
                "tags": ["Redirect"],
                "summary": "短链接跳转",
                "parameters": [
                    {"type": "string", "description": "短码", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "302": {"description": "Found"},
                    "404": {"description": "链接不存在", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.CreateLinkRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "gin2024"},
                "target_url": {"type": "string", "example": "https://github.com/gin-gonic/gin"}
            }
        },
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "Link not found"}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean", "example": true},
                "timestamp": {"type": "string"},
                "uptime": {"type": "number", "example": 12.5},
                "version": {"type": "string", "example": "1.0"}
            }
        },
        "handler.MessageResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Link deleted successfully"}
            }
        },
        "model.Link": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "created_at": {"type": "string"},
                "last_clicked": {"type": "string"},
                "target_url": {"type": "string"},
                "total_clicks": {"type": "integer"}
            }
        },
        "store.Stats": {
            "type": "object",
            "properties": {
                "total_clicks": {"type": "integer"},
                "total_links": {"type": "integer"}
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
	Title:            "TinyLink API",
	Description:      "短链接服务：创建、跳转、点击统计",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
