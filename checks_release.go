//go:build arrow_unchecked

package arrow

const debugChecks = false
