package resp

import "strconv"

// Probe walks c past exactly one complete frame without materializing it,
// returning ErrNotEnoughData if the buffer runs out before the frame is
// complete, or a ProtocolError for a malformed frame. On success the caller
// can compute the consumed length from the cursor's position and rewind it
// before calling Decode.
func Probe(c *Cursor) error {
	tag, ok := c.getByte()
	if !ok {
		return ErrNotEnoughData
	}

	switch tag {
	case '+', '-', ':', '_':
		return probeCRLFWithChecks(c)
	case '$':
		return probeBulk(c)
	case '*':
		return probeArray(c)
	default:
		return errUnsupportedFrame(tag)
	}
}

func probeBulk(c *Cursor) error {
	start := c.pos
	end, err := seekNewline(c)
	if err != nil {
		return err
	}
	lenText := c.slice(start, end)
	n, convErr := strconv.ParseInt(string(lenText), 10, 64)
	if convErr != nil || n < -1 {
		return errConversion(string(lenText))
	}
	if n == -1 {
		return nil // null bulk string, already fully consumed
	}
	return skipN(c, int(n)+2) // payload + trailing CRLF
}

func probeArray(c *Cursor) error {
	start := c.pos
	end, err := seekNewline(c)
	if err != nil {
		return err
	}
	lenText := c.slice(start, end)
	n, convErr := strconv.ParseInt(string(lenText), 10, 64)
	if convErr != nil || n < 0 {
		return errConversion(string(lenText))
	}
	for i := int64(0); i < n; i++ {
		if err := Probe(c); err != nil {
			return err
		}
	}
	return nil
}

// seekNewline advances c past the next CRLF and returns the offset of the
// '\r' itself (i.e. the exclusive end of the length/text field that
// precedes it).
func seekNewline(c *Cursor) (int, error) {
	for c.hasRemaining() {
		pos := c.pos
		b, _ := c.getByte()
		if b == '\r' {
			if !c.hasRemaining() {
				return 0, ErrNotEnoughData
			}
			nl, _ := c.getByte()
			if nl != '\n' {
				return 0, errExcessiveNewline()
			}
			return pos, nil
		}
	}
	return 0, ErrNotEnoughData
}

// probeCRLFWithChecks consumes bytes up to and including a terminating
// CRLF, rejecting a bare '\n' or a '\r' not immediately followed by '\n'.
func probeCRLFWithChecks(c *Cursor) error {
	for c.hasRemaining() {
		b, _ := c.getByte()
		if b == '\r' {
			if !c.hasRemaining() {
				return ErrNotEnoughData
			}
			nl, _ := c.getByte()
			if nl != '\n' {
				return errExcessiveNewline()
			}
			return nil
		}
		if b == '\n' {
			return errExcessiveNewline()
		}
	}
	return ErrNotEnoughData
}

// skipN advances c past exactly n bytes, failing with ErrNotEnoughData if
// the buffer is shorter than that.
func skipN(c *Cursor, n int) error {
	if len(c.buf)-c.pos < n {
		c.pos = len(c.buf)
		return ErrNotEnoughData
	}
	c.pos += n
	return nil
}
