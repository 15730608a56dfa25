// Package hnsw implements a Hierarchical Navigable Small World graph
// for approximate nearest neighbor search.
//
// Nodes are addressed by dense uint32 handles assigned by the caller.
// Deletion is logical: a tombstone flip hides the node from results
// while the graph keeps routing through it, until Compact physically
// removes tombstoned nodes and repairs neighbor lists.
//
// Concurrency: node slots live in copy-on-write segments with atomic
// publication; per-layer adjacency lists are immutable snapshots
// swapped under striped per-node locks, so readers never observe a
// partially written neighbor list.
package hnsw
