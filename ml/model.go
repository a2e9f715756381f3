package ml

// Classifier is the surface every trained model exposes. Rows carry features
// in training column order; both methods return one entry per row.
type Classifier interface {
	Predict(rows [][]float64) ([]string, error)
	PredictProba(rows [][]float64) ([][]float64, error)
}

// ClassLister is implemented by models that know their class labels. The
// order matches the columns returned by PredictProba.
type ClassLister interface {
	Classes() []string
}

// Closer is implemented by models holding native resources.
type Closer interface {
	Close() error
}

// ClassesOf returns the class labels exposed by model, if any.
func ClassesOf(model Classifier) ([]string, bool) {
	lister, ok := model.(ClassLister)
	if !ok {
		return nil, false
	}
	classes := lister.Classes()
	if len(classes) == 0 {
		return nil, false
	}
	return append([]string(nil), classes...), true
}

// Close releases model resources when the model holds any.
func Close(model Classifier) error {
	if c, ok := model.(Closer); ok {
		return c.Close()
	}
	return nil
}
