package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var formatFixture = []Tool{
	{
		Name:        "lookup",
		Description: "Search docs",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
		ServiceName: "docs",
	},
	{
		Name:        "fetch",
		Description: "Fetch a page",
		ServiceName: "web",
	},
}

func TestFormatTools_FunctionDeclarationGroup(t *testing.T) {
	out := FormatTools(FormatGemini, formatFixture)

	// One group element wrapping every declaration.
	require.Len(t, out, 1)
	decls := out[0]["function_declarations"].([]map[string]any)
	require.Len(t, decls, 2)

	assert.Equal(t, "docs__lookup", decls[0]["name"])
	assert.Equal(t, "Search docs", decls[0]["description"])
	assert.JSONEq(t,
		`{"type":"object","properties":{"q":{"type":"string"}}}`,
		string(decls[0]["parameters"].(json.RawMessage)))

	// Missing schemas degrade to an empty object schema.
	assert.Equal(t, "web__fetch", decls[1]["name"])
	assert.JSONEq(t, `{"type":"object"}`, string(decls[1]["parameters"].(json.RawMessage)))
}

func TestFormatTools_TypedFunctions(t *testing.T) {
	out := FormatTools(FormatOpenAI, formatFixture)

	require.Len(t, out, 2)
	for _, entry := range out {
		assert.Equal(t, "function", entry["type"])
	}
	fn := out[0]["function"].(map[string]any)
	assert.Equal(t, "docs__lookup", fn["name"])
	assert.Equal(t, "Search docs", fn["description"])
}

func TestFormatTools_UnknownConsumerFallsBackToUnified(t *testing.T) {
	out := FormatTools("brand-new-llm", formatFixture)

	require.Len(t, out, 2)
	assert.Equal(t, "docs__lookup", out[0]["name"])
	assert.Equal(t, "Search docs", out[0]["description"])
	assert.NotNil(t, out[0]["input_schema"])
}

func TestRegisterFormat(t *testing.T) {
	RegisterFormat("names-only", func(tools []Tool) []map[string]any {
		out := make([]map[string]any, 0, len(tools))
		for _, tool := range tools {
			out = append(out, map[string]any{"n": tool.NamespacedName()})
		}
		return out
	})

	out := FormatTools("names-only", formatFixture)
	require.Len(t, out, 2)
	assert.Equal(t, "docs__lookup", out[0]["n"])
	assert.Equal(t, "web__fetch", out[1]["n"])
}

func TestFormatTools_EmptyCatalog(t *testing.T) {
	assert.Empty(t, FormatTools(FormatOpenAI, nil))

	out := FormatTools(FormatGemini, nil)
	require.Len(t, out, 1)
	assert.Empty(t, out[0]["function_declarations"])
}
