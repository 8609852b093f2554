package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

var (
	bold   = color("\033[1m%s\033[0m")
	faint  = color("\033[2m%s\033[0m")
	red    = color("\033[1;31m%s\033[0m")
	yellow = color("\033[1;33m%s\033[0m")
)

// color wraps its argument in an escape sequence when stdout is a terminal.
func color(format string) func(...any) string {
	return func(args ...any) string {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Sprintf(format, fmt.Sprint(args...))
		}
		return fmt.Sprint(args...)
	}
}
