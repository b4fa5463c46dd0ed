package swagger

import _ "embed"

// OpenAPI is the airscore API description served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte
