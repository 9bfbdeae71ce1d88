package collisiongrid

import "fmt"

// assertf panics when cond is false in builds with the griddebug tag. It
// compiles to nothing otherwise.
func assertf(cond bool, format string, args ...any) {
	if debugChecks && !cond {
		panic(fmt.Sprintf("collisiongrid: "+format, args...))
	}
}
