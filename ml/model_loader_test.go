package ml

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectModelType(t *testing.T) {
	got, err := DetectModelType(filepath.Join(t.TempDir(), "model_tpt_indo.ONNX"))
	require.NoError(t, err)
	assert.Equal(t, TypeONNX, got)

	got, err = DetectModelType(writeFile(t, "tree.json", treeJSON))
	require.NoError(t, err)
	assert.Equal(t, TypeDecisionTree, got)

	got, err = DetectModelType(writeFile(t, "legacy.json", `[{"is_leaf": true}]`))
	require.NoError(t, err)
	assert.Equal(t, TypeDecisionTree, got)

	_, err = DetectModelType(writeFile(t, "untyped.json", `{"classes": []}`))
	assert.Error(t, err)
}

func TestLoadModelByDetectedType(t *testing.T) {
	model, err := LoadModel("", writeFile(t, "forest.json", forestJSON), ONNXOptions{})
	require.NoError(t, err)
	assert.IsType(t, &RandomForest{}, model)

	classes, ok := ClassesOf(model)
	require.True(t, ok)
	assert.Equal(t, []string{"Rendah", "Tinggi"}, classes)
	assert.NoError(t, Close(model))
}

func TestLoadModelUnsupportedType(t *testing.T) {
	_, err := LoadModel("svm", writeFile(t, "m.json", "{}"), ONNXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svm")
}

func TestClassesOfWithoutLabels(t *testing.T) {
	model, err := NewDecisionTree(nil, 0, []TreeNode{{IsLeaf: true}})
	require.NoError(t, err)
	_, ok := ClassesOf(model)
	assert.False(t, ok)
}
