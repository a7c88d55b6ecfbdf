// Package api carries the OpenAPI description of the workflow API.
package api

import _ "embed"

//go:embed openapi.yml
var OpenAPI []byte
