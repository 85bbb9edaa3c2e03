// Package connection owns a single RESP TCP socket: it reads bytes into a
// growable buffer, probes/decodes complete frames, dispatches commands
// against a shared keyspace, and writes responses back.
package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/resrv/internal/command"
	"github.com/marmos91/resrv/internal/keyspace"
	"github.com/marmos91/resrv/internal/logger"
	"github.com/marmos91/resrv/internal/metrics"
	"github.com/marmos91/resrv/internal/resp"
)

const initialBufferCapacity = 1024

// ErrConnectionReset is returned by readFrame when the peer closes the
// socket mid-frame (a partial read followed by EOF).
var ErrConnectionReset = errors.New("connection: reset by peer")

// Conn serves RESP traffic for one accepted net.Conn.
type Conn struct {
	id       string
	nc       net.Conn
	ks       *keyspace.Keyspace
	buf      []byte
	recorder *metrics.Recorder

	idleTimeout time.Duration
}

// New wraps an accepted socket. idleTimeout, if non-zero, is applied as a
// read deadline before every request. recorder may be nil to disable
// per-command metrics.
func New(nc net.Conn, ks *keyspace.Keyspace, idleTimeout time.Duration, recorder *metrics.Recorder) *Conn {
	return &Conn{
		id:          uuid.NewString()[:8],
		nc:          nc,
		ks:          ks,
		buf:         make([]byte, 0, initialBufferCapacity),
		recorder:    recorder,
		idleTimeout: idleTimeout,
	}
}

// ID returns the connection's short identifier, used to correlate its log
// lines.
func (c *Conn) ID() string { return c.id }

// Serve runs the read-decode-dispatch-write loop until the socket closes,
// a protocol error occurs, ctx is cancelled, or an idle timeout elapses.
// It always closes the underlying socket before returning.
func (c *Conn) Serve(ctx context.Context) {
	ctx = logger.WithConn(ctx, c.id, c.nc.RemoteAddr().String())
	defer c.handlePanic()
	defer c.nc.Close()

	logger.InfoCtx(ctx, "connection accepted")

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "connection closing: context cancelled")
			return
		default:
		}

		if c.idleTimeout > 0 {
			if err := c.nc.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
				logger.WarnCtx(ctx, "failed to set read deadline", "error", err)
			}
		}

		frame, err := c.readFrame(ctx)
		if err != nil {
			c.logReadError(ctx, err)
			return
		}

		cmd, cmdErr := command.FromFrame(frame)
		var reply resp.Frame
		if cmdErr != nil {
			logger.DebugCtx(ctx, "invalid command frame", "error", cmdErr)
			reply = resp.Err("ERR " + cmdErr.Error())
			c.recorder.RecordCommand("INVALID", "error")
		} else {
			logger.DebugCtx(ctx, "dispatching command", "command", cmd.Name.String())
			reply = command.Execute(c.ks, cmd)
			c.recorder.RecordCommand(cmd.Name.String(), outcomeOf(reply))
		}

		if err := c.writeFrame(reply); err != nil {
			logger.WarnCtx(ctx, "write failed, closing connection", "error", err)
			return
		}
	}
}

// outcomeOf classifies a command's reply for the resrv_commands_total
// metric: an Error frame is "error", anything else is "ok".
func outcomeOf(reply resp.Frame) string {
	if reply.Kind == resp.KindError {
		return "error"
	}
	return "ok"
}

func (c *Conn) logReadError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.InfoCtx(ctx, "connection closed by client")
	case errors.Is(err, ErrConnectionReset):
		logger.WarnCtx(ctx, "connection reset mid-frame")
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			logger.InfoCtx(ctx, "connection idle timeout")
			return
		}
		logger.WarnCtx(ctx, "protocol error, closing connection", "error", err)
	}
}

// readFrame repeatedly probes the buffered bytes for a complete frame,
// topping up from the socket when more data is needed.
func (c *Conn) readFrame(ctx context.Context) (resp.Frame, error) {
	for {
		cur := resp.NewCursor(c.buf)
		probeErr := resp.Probe(cur)
		if probeErr == nil {
			consumed := cur.Pos()
			decodeCur := resp.NewCursor(c.buf)
			frame, err := resp.Decode(decodeCur)
			if err != nil {
				return resp.Frame{}, err
			}
			c.buf = c.buf[consumed:]
			return frame, nil
		}
		if probeErr != resp.ErrNotEnoughData {
			return resp.Frame{}, probeErr
		}

		if err := c.fill(ctx); err != nil {
			return resp.Frame{}, err
		}
	}
}

// fill reads more bytes from the socket into c.buf. A zero-byte read means
// EOF: clean if the buffer is empty, ErrConnectionReset if a partial frame
// was in flight.
func (c *Conn) fill(ctx context.Context) error {
	chunk := make([]byte, 4096)
	n, err := c.nc.Read(chunk)
	if n > 0 {
		c.buf = append(c.buf, chunk[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(c.buf) == 0 {
				return io.EOF
			}
			return ErrConnectionReset
		}
		return err
	}
	if n == 0 {
		if len(c.buf) == 0 {
			return io.EOF
		}
		return ErrConnectionReset
	}
	return nil
}

// writeFrame encodes f and writes it in one call, flushing immediately so
// clients never block on a partial reply.
func (c *Conn) writeFrame(f resp.Frame) error {
	wire := resp.EncodeBytes(f)
	_, err := c.nc.Write(wire)
	return err
}

func (c *Conn) handlePanic() {
	if r := recover(); r != nil {
		logger.Error("panic in connection handler",
			"conn_id", c.id,
			"error", r,
			"stack", string(debug.Stack()))
	}
}
