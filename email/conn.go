package email

import (
	"net"
	"sync"
	"time"
)

// deadlineConn is the probe's handle on its TCP connection. Whatever
// deadline a caller sets (including the zero "no deadline"), the effective
// deadline never extends past the probe's own. go-smtp resets deadlines
// around each command, so without this a single deadline for the whole
// probe would not hold.
//
// Close is idempotent so the probe can defer it unconditionally even after
// the SMTP client has closed the connection on QUIT.
type deadlineConn struct {
	net.Conn
	deadline time.Time

	closeOnce sync.Once
	closeErr  error
}

func newDeadlineConn(c net.Conn, deadline time.Time) (*deadlineConn, error) {
	dc := &deadlineConn{
		Conn:     c,
		deadline: deadline,
	}
	if err := c.SetDeadline(deadline); err != nil {
		return nil, err
	}
	return dc, nil
}

func (c *deadlineConn) clamp(t time.Time) time.Time {
	if t.IsZero() || t.After(c.deadline) {
		return c.deadline
	}
	return t
}

func (c *deadlineConn) SetDeadline(t time.Time) error {
	return c.Conn.SetDeadline(c.clamp(t))
}

func (c *deadlineConn) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(c.clamp(t))
}

func (c *deadlineConn) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(c.clamp(t))
}

// Close releases the connection the first time it's called and returns the
// same result afterwards.
func (c *deadlineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}
