// internal/engine/main_test.go
package engine

import (
	"fmt"
	"os"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// TestMain initializes the global logger once for the package and verifies
// that no test leaks a goroutine.
func TestMain(m *testing.M) {
	logConfig := config.NewDefaultConfig().Logger
	logConfig.Level = "debug"
	logConfig.ServiceName = "test-suite"
	logConfig.Format = "console"
	logConfig.LogFile = ""

	observability.Initialize(logConfig, zapcore.Lock(os.Stdout))

	code := m.Run()

	observability.Sync()
	observability.ResetForTest()

	if code == 0 {
		if err := goleak.Find(); err != nil {
			fmt.Fprintf(os.Stderr, "leaked goroutines: %v\n", err)
			code = 1
		}
	}
	os.Exit(code)
}
