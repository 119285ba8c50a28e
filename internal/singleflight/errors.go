package singleflight

import "errors"

// ErrPanicked is delivered to waiters when the owning call panicked. The
// owner itself re-panics after waiters have been released.
var ErrPanicked = errors.New("singleflight: call panicked")
