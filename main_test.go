package h2io

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies the full suite leaves no goroutines running once every
// ConnIO under test has been torn down (idle timers, pending async reads).
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
