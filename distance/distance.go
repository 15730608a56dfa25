package distance

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Metric identifies a distance metric for vector comparison.
type Metric int

const (
	// MetricCosine scores by cosine similarity (higher is better).
	MetricCosine Metric = iota
	// MetricDot scores by unnormalized inner product (higher is better).
	MetricDot
	// MetricEuclidean scores by squared L2 distance (lower is better).
	MetricEuclidean
)

// String returns the canonical wire name of the metric.
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	case MetricEuclidean:
		return "Euclidean"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricDot || m == MetricEuclidean
}

// ParseMetric maps a wire name ("Cosine", "Dot", "Euclidean") to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "Cosine":
		return MetricCosine, nil
	case "Dot":
		return MetricDot, nil
	case "Euclidean":
		return MetricEuclidean, nil
	default:
		return 0, fmt.Errorf("distance: unknown metric %q", s)
	}
}

// MarshalJSON encodes the metric as its canonical wire name.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("distance: cannot marshal unknown metric %d", int(m))
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a canonical wire name.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("distance: metric must be a string: %w", err)
	}

	parsed, err := ParseMetric(s)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// Func computes an internal distance between two equal-length vectors.
// Smaller is better for every metric.
type Func func(a, b []float32) float32

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Provider returns the internal distance function for the metric.
//
// Cosine assumes both inputs are already L2-normalized (see Normalizes)
// and returns 1 - dot; Dot returns the negated inner product; Euclidean
// returns the squared L2 distance. All three are "smaller is better".
func (m Metric) Provider() (Func, error) {
	switch m {
	case MetricCosine:
		return func(a, b []float32) float32 { return 1 - Dot(a, b) }, nil
	case MetricDot:
		return func(a, b []float32) float32 { return -Dot(a, b) }, nil
	case MetricEuclidean:
		return SquaredL2, nil
	default:
		return nil, fmt.Errorf("distance: unsupported metric: %v", m)
	}
}

// Normalizes reports whether vectors must be L2-normalized before
// being stored or compared under this metric.
func (m Metric) Normalizes() bool { return m == MetricCosine }

// NativeScore converts an internal distance back to the caller-facing
// score convention: cosine similarity, raw dot product, or squared L2.
func (m Metric) NativeScore(internal float32) float32 {
	switch m {
	case MetricCosine:
		return 1 - internal
	case MetricDot:
		return -internal
	default:
		return internal
	}
}

// Better reports whether native score a beats native score b under the
// metric's ordering.
func (m Metric) Better(a, b float32) bool {
	if m == MetricEuclidean {
		return a < b
	}
	return a > b
}
