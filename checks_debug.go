//go:build !arrow_unchecked

package arrow

// debugChecks gates every entity/component/system precondition check. The
// arrow_unchecked build tag compiles the checks out entirely; violating a
// precondition is then undefined behavior.
const debugChecks = true
