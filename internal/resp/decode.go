package resp

import "strconv"

// Decode materializes exactly one Frame from c. The caller must have
// already run Probe successfully over the same bytes (decode does not
// re-validate buffer sufficiency); Decode re-walks from c's current
// position and leaves it advanced past the consumed frame.
func Decode(c *Cursor) (Frame, error) {
	tag, ok := c.getByte()
	if !ok {
		return Frame{}, ErrNotEnoughData
	}

	switch tag {
	case '_':
		if _, err := getLine(c); err != nil {
			return Frame{}, err
		}
		return Null(), nil
	case '+', '-':
		line, err := getLine(c)
		if err != nil {
			return Frame{}, err
		}
		if tag == '+' {
			return Simple(string(line)), nil
		}
		return Err(string(line)), nil
	case ':':
		line, err := getLine(c)
		if err != nil {
			return Frame{}, err
		}
		n, convErr := strconv.ParseInt(string(line), 10, 64)
		if convErr != nil {
			return Frame{}, errConversion(string(line))
		}
		return Integer(n), nil
	case '$':
		return decodeBulk(c)
	case '*':
		return decodeArray(c)
	default:
		return Frame{}, errUnsupportedFrame(tag)
	}
}

func decodeBulk(c *Cursor) (Frame, error) {
	start := c.pos
	end, err := seekNewline(c)
	if err != nil {
		return Frame{}, err
	}
	lenText := c.slice(start, end)
	n, convErr := strconv.ParseInt(string(lenText), 10, 64)
	if convErr != nil || n < -1 {
		return Frame{}, errConversion(string(lenText))
	}
	if n == -1 {
		return Null(), nil
	}

	dataStart := c.pos
	dataEnd := dataStart + int(n)
	if len(c.buf) < dataEnd+2 {
		return Frame{}, ErrNotEnoughData
	}
	payload := make([]byte, n)
	copy(payload, c.buf[dataStart:dataEnd])
	c.pos = dataEnd + 2 // skip payload and trailing CRLF
	return BulkString(payload), nil
}

func decodeArray(c *Cursor) (Frame, error) {
	start := c.pos
	end, err := seekNewline(c)
	if err != nil {
		return Frame{}, err
	}
	lenText := c.slice(start, end)
	n, convErr := strconv.ParseInt(string(lenText), 10, 64)
	if convErr != nil || n < 0 {
		return Frame{}, errConversion(string(lenText))
	}

	elems := make([]Frame, 0, n)
	for i := int64(0); i < n; i++ {
		elem, err := Decode(c)
		if err != nil {
			return Frame{}, err
		}
		elems = append(elems, elem)
	}
	return Frame{Kind: KindArray, Elems: elems}, nil
}

// getLine returns the bytes up to (excluding) the next CRLF and advances c
// past it.
func getLine(c *Cursor) ([]byte, error) {
	start := c.pos
	for c.hasRemaining() {
		pos := c.pos
		b, _ := c.getByte()
		if b == '\r' {
			if !c.hasRemaining() {
				return nil, ErrNotEnoughData
			}
			nl, _ := c.getByte()
			if nl != '\n' {
				return nil, errExcessiveNewline()
			}
			return c.slice(start, pos), nil
		}
	}
	return nil, ErrNotEnoughData
}
