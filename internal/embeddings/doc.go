// Package embeddings implements the Embedder contract (spec.md §4.1): a
// pure function mapping text to a fixed-dimension, unit-normalized vector.
// The real embedding model is an out-of-scope external collaborator; the
// default provider here is a deterministic hash-based embedder so that
// captures, dedup and recall are reproducible without a model dependency.
package embeddings
