// Package docs holds the OpenAPI document served under /swagger/.
// Regenerate with `swag init -g cmd/fastvlmd/docs.go -o internal/httpapi/docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "fastvlmd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/analyze": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Describe the clothing in an image",
                "parameters": [
                    {
                        "description": "Base64 image and optional prompt",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.AnalyzeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AnalyzeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.AnalyzeResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.AnalyzeResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.AnalyzeResponse"}}
                }
            }
        },
        "/gpu": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "GPU availability and memory",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GPUResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.GPUResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Liveness and model state",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/load": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Host CPU and memory load",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.LoadResponse"}}
                }
            }
        },
        "/model": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Loaded model details",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ModelResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.AnalyzeRequest": {
            "type": "object",
            "properties": {
                "image_base64": {"type": "string"},
                "prompt": {"type": "string", "example": "Describe the clothing in this photo."},
                "translate": {"type": "boolean", "example": false}
            }
        },
        "types.AnalyzeResponse": {
            "type": "object",
            "properties": {
                "analysis": {"type": "string"},
                "device": {"type": "string", "example": "cuda"},
                "duration_ms": {"type": "integer", "example": 5230},
                "error": {"type": "string"},
                "garment": {"$ref": "#/definitions/types.Garment"},
                "model_used": {"type": "string", "example": "qwen2"},
                "success": {"type": "boolean", "example": true},
                "translation": {"type": "string"}
            }
        },
        "types.GPUResponse": {
            "type": "object",
            "properties": {
                "device": {"type": "string", "example": "cuda"},
                "error": {"type": "string"},
                "gpu_available": {"type": "boolean", "example": true},
                "gpu_memory_allocated_mb": {"type": "number", "example": 3120.5},
                "gpu_memory_reserved_mb": {"type": "number", "example": 3500},
                "gpu_memory_total_mb": {"type": "number", "example": 12288},
                "gpu_name": {"type": "string", "example": "NVIDIA GeForce RTX 3060"},
                "message": {"type": "string"}
            }
        },
        "types.Garment": {
            "type": "object",
            "properties": {
                "class_name": {"type": "string", "example": "dress"},
                "class_name_ru": {"type": "string", "example": "Платье"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "device": {"type": "string", "example": "cuda"},
                "error": {"type": "string"},
                "model_loaded": {"type": "boolean", "example": true},
                "status": {"type": "string", "example": "healthy"},
                "timestamp": {"type": "number", "example": 1700000000.5},
                "torch_version": {"type": "string", "example": "0.11.10"}
            }
        },
        "types.LoadResponse": {
            "type": "object",
            "properties": {
                "cpu_percent": {"type": "number", "example": 12.5},
                "memory_percent": {"type": "number", "example": 43.1},
                "memory_total_gb": {"type": "number", "example": 16},
                "memory_used_gb": {"type": "number", "example": 6.9},
                "timestamp": {"type": "number", "example": 1700000000.5}
            }
        },
        "types.ModelResponse": {
            "type": "object",
            "properties": {
                "backend": {"type": "string", "example": "ollama"},
                "context_length": {"type": "integer", "example": 8192},
                "device": {"type": "string", "example": "cuda"},
                "error": {"type": "string"},
                "loaded": {"type": "boolean", "example": true},
                "message": {"type": "string"},
                "model_name": {"type": "string", "example": "qwen2"},
                "model_path": {"type": "string", "example": "checkpoints/llava-fastvithd_1.5b_stage3"},
                "torch_dtype": {"type": "string", "example": "Q4_K_M"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "fastvlmd API",
	Description:      "Clothing description service backed by a FastVLM vision-language model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
