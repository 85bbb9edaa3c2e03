package resp

import "errors"

// ErrNotEnoughData signals the buffer does not yet hold one complete frame.
// It is benign: the connection loop should read more bytes and probe again.
var ErrNotEnoughData = errors.New("resp: not enough data")

// ProtocolError is any non-benign codec failure. Every ProtocolError except
// ErrNotEnoughData terminates the connection that produced it.
type ProtocolError struct {
	Kind ProtocolErrorKind
	msg  string
}

// ProtocolErrorKind classifies a ProtocolError for callers that branch on
// error category (logging, metrics) without string-matching messages.
type ProtocolErrorKind int

const (
	// KindExcessiveNewline: a bare `\n` or a `\r` not followed by `\n` was
	// found where a CRLF terminator was expected.
	KindExcessiveNewline ProtocolErrorKind = iota
	// KindConversion: a length or integer field failed to parse as decimal.
	KindConversion
	// KindUnsupportedFrame: the leading byte did not match any known tag.
	KindUnsupportedFrame
)

func (e *ProtocolError) Error() string { return e.msg }

func errExcessiveNewline() error {
	return &ProtocolError{Kind: KindExcessiveNewline, msg: "resp: found '\\n' before '\\r', or '\\r' without '\\n'"}
}

func errConversion(text string) error {
	return &ProtocolError{Kind: KindConversion, msg: "resp: invalid frame format, conversion of `" + text + "` failed"}
}

func errUnsupportedFrame(b byte) error {
	return &ProtocolError{Kind: KindUnsupportedFrame, msg: "resp: unsupported frame type: " + string(rune(b))}
}
