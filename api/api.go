// Package api embeds the OpenAPI description of the control surface.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
