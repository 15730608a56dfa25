// Package model defines the shared value types of the fusego engine:
// document identifiers, documents and ranked search results.
//
// The types here are deliberately dependency-free so that every layer
// (document store, vector index, lexical index, query engine) can speak
// the same vocabulary without import cycles.
package model
