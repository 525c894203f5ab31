package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger prefixed with the test name, so output
// from concurrent relay goroutines is attributable to its test.
func TestLogger(t *testing.T) *log.Logger {
	return log.New(os.Stderr, "["+t.Name()+"] ", log.Lmicroseconds)
}
