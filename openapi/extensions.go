package openapi

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AntonStoeckl/endpoint-contracts-go/contracts"
)

// Extension keys added to annotated operations.
const (
	ExtensionContracts = "x-contracts"
	ExtensionSnapshots = "x-snapshots"
)

// ErrInvalidExtension is returned when a generated extension does not match its JSON Schema.
var ErrInvalidExtension = errors.New("invalid extension")

// ContractExtension is one entry of the x-contracts list.
type ContractExtension struct {
	Kind        contracts.Kind `yaml:"kind"`
	Description *string        `yaml:"description"`
	StatusCode  *int           `yaml:"status_code"`
	Enforced    bool           `yaml:"enforced"`
	Text        string         `yaml:"text"`
}

// SnapshotExtension is one entry of the x-snapshots list.
type SnapshotExtension struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
	Text    string `yaml:"text"`
}

func contractExtensions(found contracts.Contracts) []ContractExtension {
	entries := make([]ContractExtension, 0, len(found.Contracts))
	for _, m := range found.Contracts {
		entries = append(entries, ContractExtension{
			Kind:        m.Kind,
			Description: m.Description,
			StatusCode:  m.StatusCode,
			Enforced:    m.Enforced,
			Text:        m.Text,
		})
	}

	return entries
}

func snapshotExtensions(found contracts.Contracts) []SnapshotExtension {
	entries := make([]SnapshotExtension, 0, len(found.Snapshots))
	for _, s := range found.Snapshots {
		entries = append(entries, SnapshotExtension{Name: s.Name, Enabled: s.Enabled, Text: s.Text})
	}

	return entries
}

//go:embed extensions.schema.json
var extensionsSchema string

const extensionsSchemaURL = "https://endpoint-contracts.local/openapi/extensions.schema.json"

type extensionValidator struct {
	schemas map[string]*jsonschema.Schema
}

func newExtensionValidator() (*extensionValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(extensionsSchemaURL, strings.NewReader(extensionsSchema)); err != nil {
		return nil, fmt.Errorf("extension schema load failed: %w", err)
	}

	v := &extensionValidator{schemas: make(map[string]*jsonschema.Schema)}
	for key, def := range map[string]string{ExtensionContracts: "contracts", ExtensionSnapshots: "snapshots"} {
		compiled, err := c.Compile(extensionsSchemaURL + "#/$defs/" + def)
		if err != nil {
			return nil, fmt.Errorf("extension schema compile failed: %w", err)
		}
		v.schemas[key] = compiled
	}

	return v, nil
}

// validate checks every extension of every operation in doc, which must be the generic
// (decoded JSON) form of a document.
func (v *extensionValidator) validate(doc any) error {
	root, _ := doc.(map[string]any)
	paths, _ := root["paths"].(map[string]any)

	for path, rawItem := range paths {
		item, _ := rawItem.(map[string]any)
		for method, rawOp := range item {
			op, ok := rawOp.(map[string]any)
			if !ok {
				continue
			}

			for key, schema := range v.schemas {
				value, present := op[key]
				if !present {
					continue
				}

				if err := schema.Validate(value); err != nil {
					return fmt.Errorf("%w: %s of %s %s: %w", ErrInvalidExtension, key, strings.ToUpper(method), path, err)
				}
			}
		}
	}

	return nil
}
