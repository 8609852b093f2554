//go:build noassert

package interp

const checkPreconditions = false
