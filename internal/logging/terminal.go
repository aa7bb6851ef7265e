package logging

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether w is a terminal. Anything with an Fd method, such as
// *os.File, is checked.
func IsTTY(w any) bool {
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// colorEnabled reports whether ANSI colors should be written to w.
// NO_COLOR (https://no-color.org) and TERM=dumb turn them off.
func colorEnabled(w io.Writer) bool {
	return colorAllowed(IsTTY(w))
}

func colorAllowed(tty bool) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return tty
}
