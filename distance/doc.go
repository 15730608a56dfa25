// Package distance provides the distance metrics of the engine.
//
// Internally every metric is mapped onto a single "smaller is better"
// distance so that index code stays metric-agnostic; NativeScore
// converts back to the caller-facing convention (higher is better for
// Cosine and Dot, lower is better for Euclidean).
package distance
