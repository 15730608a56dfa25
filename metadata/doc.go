// Package metadata implements payload filter predicates.
//
// Payloads are open key-value maps (map[string]any). Filters address
// fields by dotted paths ("attrs.category"), descend into nested maps
// and fan out over arrays, and compare with numeric coercion so that
// int, int64 and float64 payload values interoperate.
package metadata
