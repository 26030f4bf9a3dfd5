package otel

import "testing"

func TestSetTrace(t *testing.T) {
	orig := TraceEnabled()
	defer SetTrace(orig)

	SetTrace(true)
	if !TraceEnabled() {
		t.Error("TraceEnabled() should be true after SetTrace(true)")
	}
	SetTrace(false)
	if TraceEnabled() {
		t.Error("TraceEnabled() should be false after SetTrace(false)")
	}
}
