package registry

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// contractMetadataSchema constrains what publishers can put in a contract
// record. Lengths are bounded so the catalog stays listable.
const contractMetadataSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["contract_id", "name", "publisher", "version"],
	"properties": {
		"contract_id": {"type": "string", "minLength": 1, "maxLength": 128},
		"name": {"type": "string", "minLength": 1, "maxLength": 100},
		"description": {"type": "string", "maxLength": 2000},
		"category": {"type": "string", "maxLength": 50},
		"tags": {
			"type": "array",
			"maxItems": 16,
			"items": {"type": "string", "minLength": 1, "maxLength": 40}
		},
		"publisher": {"type": "string", "minLength": 1, "maxLength": 128},
		"network": {"type": "string", "enum": ["mainnet", "testnet", "futurenet"]},
		"wasm_hash": {"type": "string", "pattern": "^sha256:[0-9a-f]{64}$"},
		"version": {"type": "string", "minLength": 1, "maxLength": 64}
	}
}`

// MetadataValidator validates publish metadata against the contract schema.
type MetadataValidator struct {
	schema *jsonschema.Schema
}

// NewMetadataValidator compiles the built-in contract metadata schema.
func NewMetadataValidator() (*MetadataValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://soroban-registry.schemas.local/contract.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(contractMetadataSchema)); err != nil {
		return nil, fmt.Errorf("contract schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("contract schema compile failed: %w", err)
	}
	return &MetadataValidator{schema: compiled}, nil
}

// Validate checks publish metadata. The input is the decoded JSON document,
// not a struct, so unknown shapes fail loudly before they reach a store.
func (v *MetadataValidator) Validate(doc map[string]any) error {
	if doc == nil {
		return fmt.Errorf("%w: missing metadata", ErrInvalidRecord)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
