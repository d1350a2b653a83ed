package main

import (
	"os"
	"testing"

	"github.com/okian/datacheck/pkg/logger"
)

// TestMain initializes the global logger that the code under test resolves
// via logger.Get/Named, mirroring the Init call in cmd/main.go.
func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
