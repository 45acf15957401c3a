package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupInput struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum results"`
}

func TestLocalService_Tools(t *testing.T) {
	svc := NewLocalService("utils")
	AddTool(svc, "lookup", "Look something up", func(_ context.Context, in lookupInput) (string, error) {
		return in.Query, nil
	})

	tools := svc.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "lookup", tools[0].Name)
	assert.Equal(t, "utils", tools[0].ServiceName)

	var schema struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal(tools[0].InputSchema, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "query")
	assert.Contains(t, schema.Properties, "limit")
	assert.Contains(t, schema.Required, "query")
}

func TestLocalService_Call(t *testing.T) {
	svc := NewLocalService("utils")
	AddTool(svc, "upper", "Uppercase", func(_ context.Context, in lookupInput) (string, error) {
		return "got " + in.Query, nil
	})

	result := svc.call(context.Background(), "upper", map[string]any{"query": "x"})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "got x", contentText(t, result))
}

func TestLocalService_CallHandlerError(t *testing.T) {
	svc := NewLocalService("utils")
	AddTool(svc, "boom", "Always fails", func(_ context.Context, _ lookupInput) (string, error) {
		return "", errors.New("kaput")
	})

	result := svc.call(context.Background(), "boom", nil)
	assert.False(t, result.Success)
	assert.Equal(t, "kaput", result.Error)
	assert.Empty(t, result.Content)
}

func TestLocalService_CallUnknownTool(t *testing.T) {
	svc := NewLocalService("utils")

	result := svc.call(context.Background(), "missing", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Unknown tool")
}

func TestLocalService_CallInvalidInput(t *testing.T) {
	svc := NewLocalService("utils")
	AddTool(svc, "typed", "Typed input", func(_ context.Context, in lookupInput) (string, error) {
		return in.Query, nil
	})

	result := svc.call(context.Background(), "typed", map[string]any{"query": 42})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid input")
}
