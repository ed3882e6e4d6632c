package helper

import (
	"fmt"
	"runtime/debug"

	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

// RecoverPanic recovers from panics in goroutines and logs the stack trace.
// Usage: defer helper.RecoverPanic(logger, "goroutine-name")
func RecoverPanic(log *logger.Logger, name string) {
	if r := recover(); r != nil {
		log.Errorf("PANIC recovered in %s: %v\nStack: %s", name, r, debug.Stack())
	}
}

// RecoverToError converts a panic in the deferring function into an error
// assigned to *errp. Worker goroutines of an engine use it so one bad unit
// cannot take the process down.
// Usage: defer helper.RecoverToError(logger, "jadx-worker", &err)
func RecoverToError(log *logger.Logger, name string, errp *error) {
	if r := recover(); r != nil {
		log.Errorf("PANIC recovered in %s: %v\nStack: %s", name, r, debug.Stack())
		if errp != nil {
			*errp = fmt.Errorf("panic in %s: %v", name, r)
		}
	}
}
