// Package bench measures statelift stores under the keyed rows workload: a
// table of labelled rows rendered by one list handle, with one selector
// handle per row tracking whether the row is selected.
//
// Each operation (create, replace, update, select, swap, remove, append,
// create lots, clear) is timed over a number of iterations on a fresh
// table; setup work runs outside the timing. Reports can be printed,
// written as JSON or uploaded to S3.
package bench
