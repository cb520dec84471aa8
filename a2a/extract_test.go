package a2a_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/a2a/types"
)

func TestExtractOutputSingleTextPart(t *testing.T) {
	r := types.Result{Kind: types.ResultKindMessage, Parts: []types.Part{{Kind: types.PartKindText, Text: "hi"}}}
	out, err := a2a.ExtractOutput(r)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestExtractOutputMultipleTextParts(t *testing.T) {
	r := types.Result{Kind: types.ResultKindMessage, Parts: []types.Part{
		{Kind: types.PartKindText, Text: "a"},
		{Kind: types.PartKindText, Text: "b"},
	}}
	out, err := a2a.ExtractOutput(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestExtractOutputMergesDataParts(t *testing.T) {
	p1, _ := json.Marshal(map[string]any{"a": 1})
	p2, _ := json.Marshal(map[string]any{"a": 2, "b": 3})
	r := types.Result{Kind: types.ResultKindMessage, Parts: []types.Part{
		{Kind: types.PartKindData, Data: p1},
		{Kind: types.PartKindData, Data: p2},
	}}
	out, err := a2a.ExtractOutput(r)
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.InDelta(t, 2.0, m["a"], 0)
	assert.InDelta(t, 3.0, m["b"], 0)
}

func TestExtractOutputTaskWithArtifact(t *testing.T) {
	r := types.Result{
		Kind:   types.ResultKindTask,
		ID:     "task-1",
		Status: types.TaskStatus{State: "completed"},
		Artifacts: []types.Artifact{
			{Parts: []types.Part{{Kind: types.PartKindText, Text: "done"}}},
		},
	}
	out, err := a2a.ExtractOutput(r)
	require.NoError(t, err)
	to := out.(a2a.TaskOutput)
	assert.Equal(t, "task-1", to.TaskID)
	assert.Equal(t, "completed", to.Status)
	assert.Equal(t, "done", to.Output)
}

func TestExtractOutputTaskWithoutArtifacts(t *testing.T) {
	r := types.Result{Kind: types.ResultKindTask, ID: "task-2", Status: types.TaskStatus{State: "working"}}
	out, err := a2a.ExtractOutput(r)
	require.NoError(t, err)
	to := out.(a2a.TaskOutput)
	assert.Nil(t, to.Output)
}

func TestExtractOutputErrorPartFails(t *testing.T) {
	r := types.Result{Kind: types.ResultKindMessage, Parts: []types.Part{{Kind: types.PartKindError, Error: "boom"}}}
	_, err := a2a.ExtractOutput(r)
	require.Error(t, err)
}
