//go:build !noassert

package interp

// checkPreconditions enables the Understands check in MustUnderstand.
// Build with -tags noassert to skip it.
const checkPreconditions = true
