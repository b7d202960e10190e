package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with
// `swag init -g cmd/fastvlmd/docs.go -o internal/httpapi/docs`.
//
// @title           fastvlmd API
// @version         1.0
// @description     Clothing description service backed by a FastVLM vision-language model.
//
// @contact.name   fastvlmd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
