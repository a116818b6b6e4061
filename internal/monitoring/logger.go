// Package monitoring carries the prediction pipeline's diagnostic
// stream: per-obstacle dispatch decisions, declined evaluations and
// skipped registrations. The stream is package-level so hot-path code
// can log without threading a logger through every call.
package monitoring

import "log"

// Logf emits one diagnostic line. It defaults to log.Printf and may be
// replaced with SetLogger; tests usually capture or silence it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the diagnostic logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Silence mutes the diagnostic stream and returns a func that restores
// the previous logger.
func Silence() func() {
	prev := Logf
	SetLogger(nil)
	return func() { Logf = prev }
}
