package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled gates per-message tracing in the UI loop.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("MINIFEED_TRACE") != "")
}

// TraceEnabled reports whether MINIFEED_TRACE is set or tracing was turned
// on with SetTrace.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTrace turns message tracing on or off, e.g. from a --trace flag.
func SetTrace(v bool) {
	traceEnabled.Store(v)
}
