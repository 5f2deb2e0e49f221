// Package query is the marker query engine: predicate evaluation, field
// projection, great-circle distance filtering and byte-budgeted pagination
// over an in-memory dataset snapshot.
//
// The engine performs no I/O. Datasets are read-only for the duration of a
// query, and a Planner may be shared by concurrent requests.
package query
