package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrFormatNotBlittable    = errors.New("format does not support blitting")
	ErrDeviceMissing         = errors.New("vulkan device has not been created")
	ErrNoSuitableDevice      = errors.New("no physical device meets the requirements")
	ErrUnsupportedTransition = errors.New("unsupported image layout transition")
	ErrContainerFull         = errors.New("container is full")
	ErrContainerEmpty        = errors.New("container is empty")
	ErrInvalidCapacity       = errors.New("container capacity must be positive")
	ErrOutOfRange            = errors.New("index out of range")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

// Assertf terminates the current operation when cond is false. It is used
// for programmer errors in the recording code: the failure is logged and the
// goroutine panics with an assertion failure carrying a stack trace.
func Assertf(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	err := errors.AssertionFailedf(format, args...)
	LogError("assertion failed: %s", fmt.Sprintf(format, args...))
	panic(err)
}

// AssertNonFatalf logs when cond is false and reports cond back, so callers
// can abort the current operation without terminating.
func AssertNonFatalf(cond bool, format string, args ...interface{}) bool {
	if !cond {
		LogError("postcondition failed: %s", fmt.Sprintf(format, args...))
	}
	return cond
}

// IsAssertionFailure reports whether a recovered panic value was raised by
// Assertf.
func IsAssertionFailure(r interface{}) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	return errors.HasAssertionFailure(err)
}
