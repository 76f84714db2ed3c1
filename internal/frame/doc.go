// Package frame implements the typed tabular data model that flows through a
// pipeline.
//
// A Frame is an immutable, ordered set of equally sized named columns whose
// cells are cty.Values. A subset of the columns may be designated as index
// levels, which is how multi-index keys are represented. Every operation that
// changes a frame returns a new one, so frames can be shared freely between
// goroutines and cached by the result cache.
//
// A Schema declares the expected fields of a frame. Validate reports every
// violation at once through a SchemaMismatchError, and Coerce performs
// lossless conversions before validating.
//
// The package also carries the filtering helpers used by transformation
// steps: Compare, Query, IsSubfilter, Concat and CachedFrame.
package frame
