//go:build !debug_locks

package engine

// captureCallSite is a zero-cost no-op in release builds; call-site
// annotation is a debug_locks-only aid.
func captureCallSite() string { return "" }
