package resp

import "strconv"

// Encode appends the wire representation of f to buf and returns the
// extended slice, mirroring the append-oriented style of bytes.Buffer.
func Encode(buf []byte, f Frame) []byte {
	switch f.Kind {
	case KindSimple:
		buf = append(buf, '+')
		buf = append(buf, f.Str...)
		return append(buf, '\r', '\n')
	case KindError:
		buf = append(buf, '-')
		buf = append(buf, f.Str...)
		return append(buf, '\r', '\n')
	case KindInteger:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, f.Int, 10)
		return append(buf, '\r', '\n')
	case KindNull:
		return append(buf, '$', '-', '1', '\r', '\n')
	case KindBulk:
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(f.Bulk)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, f.Bulk...)
		return append(buf, '\r', '\n')
	case KindArray:
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(f.Elems)), 10)
		buf = append(buf, '\r', '\n')
		for _, elem := range f.Elems {
			buf = Encode(buf, elem)
		}
		return buf
	default:
		return buf
	}
}

// EncodeBytes is a convenience wrapper around Encode for callers that do
// not already hold a growable buffer.
func EncodeBytes(f Frame) []byte {
	return Encode(nil, f)
}
