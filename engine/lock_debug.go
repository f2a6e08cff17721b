//go:build debug_locks

package engine

import (
	"fmt"
	"runtime"
)

// captureCallSite records file:line:function of the lock acquisition
// site two frames up (TryLockFor's caller, which is Lock itself for
// unconditional acquisitions), for diagnosing lock contention during
// development.
func captureCallSite() string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s:%d:%s", file, line, name)
}
