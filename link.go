package ur_assist

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
)

const (
	DefaultHost           = "192.168.1.5"
	DefaultPort           = 30002
	DefaultConnectTimeout = time.Second
)

// Link is a write-only text connection to the controller's command port.
// Nothing is ever read back, so pacing between commands is the caller's job.
type Link struct {
	conn       net.Conn
	addr       string
	paceScale  float64
	logger     logging.Logger
	sent       int
	closeOnce  sync.Once
	closeError error
}

// Probe dials host:port once with the given timeout. Every dial failure,
// whether a timeout, a refusal, an unreachable network or a bad name, is
// reported as unreachable and leaves nothing open.
func Probe(ctx context.Context, host string, port int, timeout time.Duration, logger logging.Logger) (*Link, bool) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logger.Debugf("controller at %s not reachable: %v", addr, err)
		return nil, false
	}

	logger.Infof("connected to controller at %s", addr)
	return NewLink(conn, logger), true
}

// NewLink wraps an already open connection.
func NewLink(conn net.Conn, logger logging.Logger) *Link {
	return &Link{
		conn:      conn,
		addr:      conn.RemoteAddr().String(),
		paceScale: 1,
		logger:    logger,
	}
}

// SetPaceScale multiplies every Pace duration by scale. Zero disables pacing.
func (l *Link) SetPaceScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	l.paceScale = scale
}

// Send writes one command line terminated by a newline.
func (l *Link) Send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := cmd.String()
	if _, err := l.conn.Write([]byte(line + "\n")); err != nil {
		return errors.Wrapf(err, "failed to send %q to %s", line, l.addr)
	}
	l.sent++
	l.logger.Debugf("sent: %s", line)
	return nil
}

// Pace blocks for d scaled by the pace scale, or until ctx is done.
func (l *Link) Pace(ctx context.Context, d time.Duration) error {
	wait := time.Duration(float64(d) * l.paceScale)
	if wait <= 0 {
		return ctx.Err()
	}
	if !goutils.SelectContextOrWait(ctx, wait) {
		return ctx.Err()
	}
	return nil
}

// Sent returns the number of lines written so far.
func (l *Link) Sent() int {
	return l.sent
}

// Close closes the connection. Later calls return the first result.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeError = l.conn.Close()
		l.logger.Debugf("closed link to %s after %d commands", l.addr, l.sent)
	})
	return l.closeError
}
