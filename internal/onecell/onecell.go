// Package onecell implements the "lazy, at-most-once, immutable after
// publish" cache primitive used throughout the core: a cell starts empty,
// the first caller to Get triggers compute, and every caller (including the
// one that triggered compute) observes the same published value or error.
package onecell

import "sync"

// Cell is a single-value, single-error memoisation cell. The zero value is
// ready to use. A Cell must not be copied after first use.
type Cell[T any] struct {
	once sync.Once
	val  T
	err  error
}

// Get returns the cell's published value, computing it via compute on the
// first call. Later calls never re-invoke compute, even if the first call's
// compute returned an error: both success and failure are memoised.
func (c *Cell[T]) Get(compute func() (T, error)) (T, error) {
	c.once.Do(func() {
		c.val, c.err = compute()
	})
	return c.val, c.err
}

