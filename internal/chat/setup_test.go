package chat

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no orchestrator goroutine outlives its request.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
