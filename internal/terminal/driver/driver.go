// Package driver holds the registration point for the vendor protocol
// client that backs terminal dialing. The wire client is a separate
// component and installs itself through Register from its init function,
// the way database/sql drivers do. A build without one still runs; every
// dial then reports the missing driver.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/karlutxo/zk-tools/internal/terminal"
)

var (
	mu      sync.Mutex
	factory func(logger *slog.Logger) terminal.Dialer
)

// Register installs the vendor dial factory. Later registrations replace
// earlier ones, which only matters in tests.
func Register(f func(logger *slog.Logger) terminal.Dialer) {
	mu.Lock()
	defer mu.Unlock()
	factory = f
}

// New returns the registered dialer, or one that fails every dial when no
// driver is linked into the build.
func New(logger *slog.Logger) terminal.Dialer {
	mu.Lock()
	defer mu.Unlock()
	if factory == nil {
		return missingDialer{}
	}
	return factory(logger)
}

type missingDialer struct{}

func (missingDialer) Dial(context.Context, string, int, time.Duration) (terminal.Conn, error) {
	return nil, errors.New("no terminal protocol driver linked into this build")
}
