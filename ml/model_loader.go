package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"tptpredict/errors"
)

const (
	TypeDecisionTree       = "decision_tree"
	TypeRandomForest       = "random_forest"
	TypeLogisticRegression = "logistic_regression"
	TypeONNX               = "onnx"
)

// LoadModel loads the model at path. An empty modelType is detected from the
// file: ".onnx" files are ONNX models, JSON documents name their type in a
// top-level "type" field, and a bare JSON array is a decision tree.
func LoadModel(modelType, path string, onnx ONNXOptions) (Classifier, error) {
	if modelType == "" {
		detected, err := DetectModelType(path)
		if err != nil {
			return nil, err
		}
		modelType = detected
	}
	switch modelType {
	case TypeDecisionTree:
		model := &DecisionTree{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case TypeRandomForest:
		model := &RandomForest{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case TypeLogisticRegression:
		model := &LogisticRegression{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case TypeONNX:
		return LoadONNXModel(path, onnx)
	default:
		return nil, errors.Newf("unsupported model type %q", modelType)
	}
}

// DetectModelType inspects path to find its model type.
func DetectModelType(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".onnx") {
		return TypeONNX, nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		return TypeDecisionTree, nil
	}
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(trimmed), &header); err != nil {
		return "", err
	}
	if header.Type == "" {
		return "", errors.New(`model document has no "type" field`)
	}
	return header.Type, nil
}
