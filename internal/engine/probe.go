package engine

import (
	"fmt"
)

// Probe runs check and reports false instead of propagating a panic. Native
// bindings may panic when their library is missing or half-initialized.
func Probe(check func() bool) (ok bool) {
	if check == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return check()
}

// Guard runs fn and turns a panic into an engine failure of id.
func Guard(id ID, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Failure(id, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}
