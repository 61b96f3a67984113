package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edaTool() Tool {
	return Tool{
		ToolID:      "analyzer.eda",
		Description: "Exploratory data analysis",
		Inputs: map[string]InputSpec{
			"dataset_path": {Type: TypeString, Required: true},
			"sample_rows":  {Type: TypeInteger},
			"size_mb":      {Type: TypeNumber},
		},
		Constraints: map[string]float64{"max_size_mb": 100},
		Auth:        Auth{Scope: []string{"analyzer:run"}},
	}
}

func runCodeTool() Tool {
	return Tool{
		ToolID: "executor.run_code",
		Inputs: map[string]InputSpec{
			"script_path": {Type: TypeString, Required: true},
			"timeout_sec": {Type: TypeInteger},
		},
		ApprovalRequired: true,
		Auth:             Auth{Scope: []string{"executor:run"}},
	}
}

func TestLoadSkipsBrokenManifests(t *testing.T) {
	dir := t.TempDir()

	good := `{
		"tool_id": "analyzer.eda",
		"inputs": {"dataset_path": {"type": "string", "required": true}},
		"auth": {"scope": ["analyzer:run"]}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eda.json"), []byte(good), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank_id.json"), []byte(`{"tool_id": ""}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	registry, err := Load(dir)
	require.NoError(t, err)

	assert.Len(t, registry.List(), 1)
	_, ok := registry.Get("analyzer.eda")
	assert.True(t, ok)
}

func TestLoadMissingDirectoryYieldsEmptyRegistry(t *testing.T) {
	registry, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, registry.List())
}

func TestListScopeFilterUsesUnionSemantics(t *testing.T) {
	registry := NewRegistry(edaTool(), runCodeTool())

	assert.Len(t, registry.List(), 2)

	analyzers := registry.List("analyzer:run")
	require.Len(t, analyzers, 1)
	assert.Equal(t, "analyzer.eda", analyzers[0].ToolID)

	// One matching scope in the filter is enough.
	both := registry.List("analyzer:run", "executor:run")
	assert.Len(t, both, 2)

	assert.Empty(t, registry.List("datasets:write"))
}

func TestValidateInputsClosedness(t *testing.T) {
	registry := NewRegistry(edaTool())

	err := registry.ValidateInputs("analyzer.eda", map[string]any{
		"dataset_path":     "/data/d.csv",
		"unexpected_field": 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown parameter")
}

func TestValidateInputsMissingRequired(t *testing.T) {
	registry := NewRegistry(edaTool())

	err := registry.ValidateInputs("analyzer.eda", map[string]any{"sample_rows": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing required parameter: dataset_path")
}

func TestValidateInputsTypeChecks(t *testing.T) {
	registry := NewRegistry(edaTool())

	err := registry.ValidateInputs("analyzer.eda", map[string]any{
		"dataset_path": 42,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be string")

	err = registry.ValidateInputs("analyzer.eda", map[string]any{
		"dataset_path": "/data/d.csv",
		"sample_rows":  "ten",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be integer")

	// JSON numbers arrive as float64; integral values pass integer checks.
	err = registry.ValidateInputs("analyzer.eda", map[string]any{
		"dataset_path": "/data/d.csv",
		"sample_rows":  float64(10),
	})
	assert.NoError(t, err)

	err = registry.ValidateInputs("analyzer.eda", map[string]any{
		"dataset_path": "/data/d.csv",
		"sample_rows":  10.5,
	})
	require.Error(t, err)
}

func TestValidateInputsUnknownTool(t *testing.T) {
	registry := NewRegistry()

	err := registry.ValidateInputs("nonexistent.tool", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCheckConstraints(t *testing.T) {
	registry := NewRegistry(edaTool())

	err := registry.CheckConstraints("analyzer.eda", map[string]any{
		"dataset_path": "/data/d.csv",
		"size_mb":      250.0,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")

	assert.NoError(t, registry.CheckConstraints("analyzer.eda", map[string]any{
		"dataset_path": "/data/d.csv",
		"size_mb":      10.0,
	}))

	// Constrained input absent: nothing to evaluate.
	assert.NoError(t, registry.CheckConstraints("analyzer.eda", map[string]any{
		"dataset_path": "/data/d.csv",
	}))
}
