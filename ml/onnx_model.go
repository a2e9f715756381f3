package ml

import (
	"encoding/json"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"tptpredict/errors"
)

// ONNXOptions names the shared library and graph endpoints of an exported
// classifier. The probability output must be a float32 [rows, classes]
// tensor (skl2onnx with zipmap disabled). The label output is not read:
// its element type depends on the training targets, so labels are taken
// from the most probable class.
type ONNXOptions struct {
	Library     string
	Input       string
	ProbaOutput string
}

// ClassesMetadataKey is the custom metadata entry holding the class labels,
// either as a JSON array or a comma separated list.
const ClassesMetadataKey = "classes"

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initONNXRuntime(library string) error {
	ortInitOnce.Do(func() {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		if !ort.IsInitialized() {
			ortInitErr = ort.InitializeEnvironment()
		}
	})
	return ortInitErr
}

// ONNXModel wraps an ONNX Runtime session.
type ONNXModel struct {
	session   *ort.DynamicAdvancedSession
	classes   []string
	nFeatures int
	nClasses  int
}

// LoadONNXModel opens path and reads class labels and tensor shapes from the
// model itself.
func LoadONNXModel(path string, opts ONNXOptions) (*ONNXModel, error) {
	if err := initONNXRuntime(opts.Library); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model inputs/outputs")
	}
	nFeatures := lastDim(inputs, opts.Input)
	nClasses := lastDim(outputs, opts.ProbaOutput)

	classes, err := readClassMetadata(path)
	if err != nil {
		return nil, err
	}
	if nClasses <= 0 {
		nClasses = len(classes)
	}
	if nClasses <= 0 {
		return nil, errors.Newf("cannot determine class count of output %q", opts.ProbaOutput)
	}
	if len(classes) > 0 && len(classes) != nClasses {
		return nil, errors.Newf("metadata lists %d classes, output %q has %d", len(classes), opts.ProbaOutput, nClasses)
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{opts.Input}, []string{opts.ProbaOutput}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ONNX model")
	}

	return &ONNXModel{
		session:   session,
		classes:   classes,
		nFeatures: nFeatures,
		nClasses:  nClasses,
	}, nil
}

func lastDim(infos []ort.InputOutputInfo, name string) int {
	for _, info := range infos {
		if info.Name != name || len(info.Dimensions) == 0 {
			continue
		}
		return int(info.Dimensions[len(info.Dimensions)-1])
	}
	return -1
}

func readClassMetadata(path string) ([]string, error) {
	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model metadata")
	}
	defer meta.Destroy()

	raw, ok, err := meta.LookupCustomMetadataMap(ClassesMetadataKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read class metadata")
	}
	if !ok {
		return nil, nil
	}
	return parseClassList(raw), nil
}

func parseClassList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var classes []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &classes) == nil {
		return classes
	}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			classes = append(classes, part)
		}
	}
	return classes
}

func (m *ONNXModel) Classes() []string {
	return m.classes
}

func (m *ONNXModel) Predict(rows [][]float64) ([]string, error) {
	proba, err := m.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	return labelsFromProba(m.classes, proba), nil
}

func (m *ONNXModel) PredictProba(rows [][]float64) ([][]float64, error) {
	if m.session == nil {
		return nil, errors.New("model session is nil")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	flat, width, err := flattenRows(rows, m.nFeatures)
	if err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(int64(len(rows)), int64(width)), flat)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	probaTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(len(rows)), int64(m.nClasses)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create probability output tensor")
	}
	defer probaTensor.Destroy()

	if err := m.session.Run([]ort.Value{inputTensor}, []ort.Value{probaTensor}); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	return reshapeProba(probaTensor.GetData(), len(rows), m.nClasses)
}

// flattenRows packs rows into a row-major float32 buffer. nFeatures <= 0
// accepts any width.
func flattenRows(rows [][]float64, nFeatures int) ([]float32, int, error) {
	width := len(rows[0])
	if nFeatures > 0 && width != nFeatures {
		return nil, 0, errors.Newf("expected %d features, got %d", nFeatures, width)
	}
	flat := make([]float32, 0, len(rows)*width)
	for _, row := range rows {
		if len(row) != width {
			return nil, 0, errors.New("ragged input rows")
		}
		for _, v := range row {
			flat = append(flat, float32(v))
		}
	}
	return flat, width, nil
}

func reshapeProba(data []float32, rows, nClasses int) ([][]float64, error) {
	if len(data) != rows*nClasses {
		return nil, errors.Newf("probability output has %d values, want %d", len(data), rows*nClasses)
	}
	proba := make([][]float64, rows)
	for i := range proba {
		row := make([]float64, nClasses)
		for c := range row {
			row[c] = float64(data[i*nClasses+c])
		}
		proba[i] = row
	}
	return proba, nil
}

// Close destroys the ONNX session.
func (m *ONNXModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
