// Package respclient is a minimal RESP2 client used for interop testing and
// the CLI's manual smoke-test subcommands. It is a real consumer of
// internal/resp's public codec API rather than a hand-rolled byte writer.
package respclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/resrv/internal/resp"
)

// DefaultConnectTimeout is the dial timeout Connect uses.
const DefaultConnectTimeout = 5 * time.Second

// admissionProbeWindow is how long Connect waits for an unsolicited error
// frame signalling admission-control rejection before assuming the
// connection is healthy.
const admissionProbeWindow = 10 * time.Millisecond

// Client is a single-connection, non-pipelined RESP2 client.
type Client struct {
	conn net.Conn
	buf  []byte
}

// Connect dials addr with DefaultConnectTimeout and probes for an immediate
// admission-control rejection before returning, mirroring the original
// implementation's short non-blocking read right after connect.
func Connect(addr string) (*Client, error) {
	return ConnectTimeout(addr, DefaultConnectTimeout)
}

// ConnectTimeout dials addr with an explicit timeout.
func ConnectTimeout(addr string, timeout time.Duration) (*Client, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("respclient: dial %s: %w", addr, err)
	}

	c := &Client{conn: nc}

	if rejectErr := c.probeAdmissionRejection(); rejectErr != nil {
		_ = nc.Close()
		return nil, rejectErr
	}

	return c, nil
}

// probeAdmissionRejection does a short non-blocking-ish read right after
// connect: a server that refuses admission writes a single Error frame and
// closes the socket without waiting for a request.
func (c *Client) probeAdmissionRejection() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(admissionProbeWindow)); err != nil {
		return nil
	}
	defer c.conn.SetReadDeadline(time.Time{})

	frame, err := c.readFrame()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return nil
	}

	if frame.Kind == resp.KindError {
		return fmt.Errorf("respclient: connection rejected: %s", frame.Str)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) execute(args ...resp.Frame) (resp.Frame, error) {
	req := resp.Frame{Kind: resp.KindArray, Elems: args}
	if _, err := c.conn.Write(resp.EncodeBytes(req)); err != nil {
		return resp.Frame{}, fmt.Errorf("respclient: write: %w", err)
	}
	return c.readFrame()
}

func (c *Client) readFrame() (resp.Frame, error) {
	for {
		cur := resp.NewCursor(c.buf)
		if probeErr := resp.Probe(cur); probeErr == nil {
			consumed := cur.Pos()
			decodeCur := resp.NewCursor(c.buf)
			frame, err := resp.Decode(decodeCur)
			if err != nil {
				return resp.Frame{}, err
			}
			c.buf = c.buf[consumed:]
			return frame, nil
		} else if probeErr != resp.ErrNotEnoughData {
			return resp.Frame{}, probeErr
		}

		chunk := make([]byte, 4096)
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
		}
		if err != nil {
			return resp.Frame{}, err
		}
	}
}

func bulk(s string) resp.Frame { return resp.BulkFromString(s) }

// Ping sends PING, optionally with a message.
func (c *Client) Ping(message string) (resp.Frame, error) {
	if message == "" {
		return c.execute(bulk("PING"))
	}
	return c.execute(bulk("PING"), bulk(message))
}

// Get fetches a key.
func (c *Client) Get(key string) (resp.Frame, error) {
	return c.execute(bulk("GET"), bulk(key))
}

// Set stores a key/value pair. If ttl is non-zero, it is sent as a PX
// (millisecond) expiry.
func (c *Client) Set(key string, value []byte, ttl time.Duration) (resp.Frame, error) {
	valFrame := resp.BulkFromString(string(value))
	if ttl <= 0 {
		return c.execute(bulk("SET"), bulk(key), valFrame)
	}
	millis := fmt.Sprintf("%d", ttl.Milliseconds())
	return c.execute(bulk("SET"), bulk(key), valFrame, bulk("PX"), bulk(millis))
}

// Del removes one or more keys.
func (c *Client) Del(keys ...string) (resp.Frame, error) {
	return c.execute(append([]resp.Frame{bulk("DEL")}, bulkSlice(keys)...)...)
}

// Exists counts how many of the given keys exist.
func (c *Client) Exists(keys ...string) (resp.Frame, error) {
	return c.execute(append([]resp.Frame{bulk("EXISTS")}, bulkSlice(keys)...)...)
}

// Incr atomically increments a key's integer value.
func (c *Client) Incr(key string) (resp.Frame, error) {
	return c.execute(bulk("INCR"), bulk(key))
}

// FlushDB removes every key.
func (c *Client) FlushDB() (resp.Frame, error) {
	return c.execute(bulk("FLUSHDB"))
}

// DBSize returns the number of keys currently stored.
func (c *Client) DBSize() (resp.Frame, error) {
	return c.execute(bulk("DBSIZE"))
}

// Keys returns all keys matching a glob pattern.
func (c *Client) Keys(pattern string) (resp.Frame, error) {
	return c.execute(bulk("KEYS"), bulk(pattern))
}

// Expire sets a key's remaining time-to-live, in seconds.
func (c *Client) Expire(key string, seconds uint64) (resp.Frame, error) {
	return c.execute(bulk("EXPIRE"), bulk(key), bulk(fmt.Sprintf("%d", seconds)))
}

// TTL reports a key's remaining time-to-live, in seconds.
func (c *Client) TTL(key string) (resp.Frame, error) {
	return c.execute(bulk("TTL"), bulk(key))
}

// Lolwut sends the LOLWUT easter egg command with the given raw argument
// frames spread as individual command arguments, matching the resolved
// response shape Array(args..., Simple(fixed-string)).
func (c *Client) Lolwut(args []resp.Frame) (resp.Frame, error) {
	return c.execute(append([]resp.Frame{bulk("LOLWUT")}, args...)...)
}

func bulkSlice(strs []string) []resp.Frame {
	out := make([]resp.Frame, len(strs))
	for i, s := range strs {
		out[i] = bulk(s)
	}
	return out
}
