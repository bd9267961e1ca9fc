package testutil

import (
	"log"
	"testing"
)

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// TestLogger returns a logger whose output lands in the test's own log, so
// it only surfaces on failure or with -v.
func TestLogger(t *testing.T) *log.Logger {
	return log.New(testWriter{t: t}, "", log.LstdFlags)
}
