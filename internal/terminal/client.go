// Package terminal talks to ZKTeco access terminals. The proprietary wire
// protocol lives behind the Conn interface; this package owns addressing,
// connection retries and the employee-level operations on top.
package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DeviceUser mirrors a user record as the firmware stores it.
type DeviceUser struct {
	UID       int
	Name      string
	Privilege int
	Password  string
	GroupID   string
	UserID    string
	Card      string
}

// Template describes one biometric template slot of a device user.
type Template struct {
	UID   int
	FID   int
	Type  int
	Valid int
	Size  int
}

// Conn is the capability surface of a connected terminal session. The
// vendor protocol client implements it; tests use fakes. Calls are
// blocking and bounded only by the timeout fixed at dial time.
type Conn interface {
	Users(ctx context.Context) ([]DeviceUser, error)
	Templates(ctx context.Context) ([]Template, error)
	// SetUser creates or updates the user addressed by its UID.
	SetUser(ctx context.Context, user DeviceUser) error
	// DeleteUser removes a user by device uid (0 means unset) and/or
	// business user id ("" means unset).
	DeleteUser(ctx context.Context, uid int, userID string) error
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Clock(ctx context.Context) (time.Time, error)
	SetClock(ctx context.Context, t time.Time) error
	SerialNumber(ctx context.Context) (string, error)
	DeviceName(ctx context.Context) (string, error)
	Model(ctx context.Context) (string, error)
	Platform(ctx context.Context) (string, error)
	FirmwareVersion(ctx context.Context) (string, error)
	MAC(ctx context.Context) (string, error)
	AttendanceCount(ctx context.Context) (int, error)
	Disconnect() error
}

// Dialer opens a session against one terminal.
type Dialer interface {
	Dial(ctx context.Context, host string, port int, timeout time.Duration) (Conn, error)
}

// Connector dials terminals with a fixed retry budget and inter-attempt
// delay. A slow terminal stalls the caller for the full budget; there is
// no cancellation below the dial timeout.
type Connector struct {
	dialer  Dialer
	retries int
	delay   time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

func NewConnector(dialer Dialer, retries int, delay, timeout time.Duration, logger *slog.Logger) *Connector {
	if retries < 1 {
		retries = 1
	}
	return &Connector{dialer: dialer, retries: retries, delay: delay, timeout: timeout, logger: logger}
}

// Connect dials with retries. The last dial error is surfaced when every
// attempt fails.
func (c *Connector) Connect(ctx context.Context, host string, port int) (Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		conn, err := c.dialer.Dial(ctx, host, port, c.timeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.logger.WarnContext(ctx, "terminal connect attempt failed",
			"host", host, "port", port, "attempt", attempt, "error", err.Error())
		if attempt < c.retries {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("connect to %s: %w", FormatAddress(host, port), lastErr)
}
