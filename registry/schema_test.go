package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goflow/orchestrator/registry"
)

func TestValidateSchemaAcceptsEmptySchema(t *testing.T) {
	assert.NoError(t, registry.ValidateSchema(registry.Schema{}))
}

func TestValidateSchemaAcceptsWellFormedSchema(t *testing.T) {
	s := registry.Schema{
		Type: "object",
		Properties: map[string]registry.SchemaProperty{
			"message": {Type: "string"},
		},
		Required: []string{"message"},
	}
	assert.NoError(t, registry.ValidateSchema(s))
}

func TestValidateInputRejectsMissingRequiredProperty(t *testing.T) {
	s := registry.Schema{
		Type: "object",
		Properties: map[string]registry.SchemaProperty{
			"message": {Type: "string"},
		},
		Required: []string{"message"},
	}
	err := registry.ValidateInput(s, map[string]any{})
	require.Error(t, err)
}

func TestValidateInputAcceptsConformingData(t *testing.T) {
	s := registry.Schema{
		Type: "object",
		Properties: map[string]registry.SchemaProperty{
			"message": {Type: "string"},
		},
		Required: []string{"message"},
	}
	err := registry.ValidateInput(s, map[string]any{"message": "hi"})
	assert.NoError(t, err)
}
