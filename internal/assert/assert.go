// Package assert implements precondition checks that are only
// compiled in with the debug build tag.
package assert

import "fmt"

// That panics with the formatted message if cond is false
// and assertions are enabled.
func That(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}
