// Package api holds the embedded OpenAPI document served by the HTTP layer.
package api

import "embed"

//go:embed openapi.yaml
var FS embed.FS
