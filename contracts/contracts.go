// Package contracts embeds the API contract and the JSON schemas the gateway validates against.
package contracts

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed gateway.yaml
var GatewayYAML []byte

//go:embed theme.schema.json
var ThemeSchemaJSON []byte

const themeSchemaURL = "https://maison.app/schemas/theme.json"

// LoadGateway parses and validates the gateway OpenAPI document.
// Servers are cleared so routes match on any host: tenants arrive on many subdomains.
func LoadGateway(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(GatewayYAML)
	if err != nil {
		return nil, fmt.Errorf("load gateway contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate gateway contract: %w", err)
	}
	doc.Servers = nil
	return doc, nil
}

// CompileTheme compiles the tenant theme JSON schema.
func CompileTheme() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(themeSchemaURL, bytes.NewReader(ThemeSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add theme schema: %w", err)
	}
	schema, err := compiler.Compile(themeSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile theme schema: %w", err)
	}
	return schema, nil
}
