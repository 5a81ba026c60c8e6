// Package api holds the OpenAPI description of the spoved REST backend.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
