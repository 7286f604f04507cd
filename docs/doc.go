// Package docs provides generated OpenAPI documentation.
//
// docpond API
//
//	@title			docpond API
//	@version		1.0
//	@description	Scanned document ingestion API for managing documents, pages, presets, and OCR jobs.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/docpond
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8141
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/docpond/serve.go -o ./swagger --parseDependency --parseInternal
