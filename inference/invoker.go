package inference

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"tptpredict/artifact"
	"tptpredict/errors"
	"tptpredict/logger"
	"tptpredict/monitoring"
)

// Invoker runs predictions against the loader's current snapshot and
// memoizes results per input vector.
type Invoker struct {
	loader *artifact.Loader
	cache  *lru.Cache[string, PredictionResult]
}

// NewInvoker creates an invoker. A cacheSize of zero disables the cache.
func NewInvoker(loader *artifact.Loader, cacheSize int) (*Invoker, error) {
	inv := &Invoker{loader: loader}
	if cacheSize > 0 {
		cache, err := lru.New[string, PredictionResult](cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create prediction cache")
		}
		inv.cache = cache
		loader.OnReload(func(*artifact.Artifacts) {
			cache.Purge()
			logger.Debugw("prediction cache purged after artifact reload")
		})
	}
	return inv, nil
}

// Artifacts returns the snapshot predictions currently run against.
func (inv *Invoker) Artifacts() (*artifact.Artifacts, error) {
	return inv.loader.Get()
}

// Invoke predicts the category for row. Failures are ErrInference errors
// carrying the received inputs and the expected features as details.
func (inv *Invoker) Invoke(ctx context.Context, row InputRow) (*PredictionResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := inv.loader.Get()
	if err != nil {
		return nil, err
	}

	key := ""
	if inv.cache != nil {
		if vector, err := Vector(a.FeatureNames, row); err == nil {
			key = cacheKey(a, vector)
			if cached, ok := inv.cache.Get(key); ok {
				monitoring.ObserveInference(start, monitoring.StatusCached)
				result := cached.clone()
				result.Cached = true
				return result, nil
			}
		}
	}

	result, err := Predict(a, row)
	if err != nil {
		monitoring.ObserveInference(start, monitoring.StatusError)
		logger.Warnw("prediction failed", "error", err, "inputs", row.String())
		return nil, err
	}
	monitoring.ObserveInference(start, monitoring.StatusSuccess)
	if !result.OrderVerified {
		logger.Warnw("predicted label is not the most probable class",
			"label", result.Label, "probabilities", result.Probabilities)
	}
	if key != "" {
		inv.cache.Add(key, *result.clone())
	}
	logger.Debugw("prediction", "label", result.Label, "duration", time.Since(start))
	return result, nil
}

// OnReload registers fn to run after the artifacts are swapped.
func (inv *Invoker) OnReload(fn func(*artifact.Artifacts)) {
	inv.loader.OnReload(fn)
}

// Len reports the number of cached results.
func (inv *Invoker) Len() int {
	if inv.cache == nil {
		return 0
	}
	return inv.cache.Len()
}

// cacheKey binds the vector to the snapshot so a result computed just before
// a swap is never served for the new model.
func cacheKey(a *artifact.Artifacts, vector []float64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(a.LoadedAt.UnixNano(), 36))
	for _, v := range vector {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(math.Float64bits(v), 36))
	}
	return b.String()
}
