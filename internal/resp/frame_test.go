package resp

import "testing"

func roundtrip(t *testing.T, f Frame) Frame {
	t.Helper()
	wire := EncodeBytes(f)

	probeCur := NewCursor(wire)
	if err := Probe(probeCur); err != nil {
		t.Fatalf("probe: %v", err)
	}

	decodeCur := NewCursor(wire)
	decoded, err := Decode(decodeCur)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decodeCur.Pos() != probeCur.Pos() {
		t.Errorf("probe and decode consumed different lengths: %d vs %d", probeCur.Pos(), decodeCur.Pos())
	}
	return decoded
}

func TestCodecRoundtrip(t *testing.T) {
	cases := []Frame{
		Simple("OK"),
		Err("ERR wrong number of arguments"),
		Integer(0),
		Integer(-78741),
		BulkFromString("hello"),
		BulkString([]byte{}),
		BulkString([]byte("bin\r\n\x00ary")),
		Null(),
		ArrayOf(),
		ArrayOf(Integer(-78741), Simple("hello"), Null()),
		ArrayOf(BulkFromString("SET"), BulkFromString("key"), BulkFromString("value")),
	}

	for _, f := range cases {
		got := roundtrip(t, f)
		if !got.Equal(f) {
			t.Errorf("roundtrip mismatch: got %v, want %v", got, f)
		}
	}
}

func TestProbe_NotEnoughData(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("+OK"),
		[]byte("+OK\r"),
		[]byte("$5\r\nhel"),
		[]byte("*2\r\n:1\r\n"),
	}
	for _, buf := range cases {
		if err := Probe(NewCursor(buf)); err != ErrNotEnoughData {
			t.Errorf("buf %q: expected ErrNotEnoughData, got %v", buf, err)
		}
	}
}

func TestProbe_ExcessiveNewline(t *testing.T) {
	cases := [][]byte{
		[]byte("+OK\n"),
		[]byte("+OK\rX"),
		[]byte(":5\n"),
	}
	for _, buf := range cases {
		err := Probe(NewCursor(buf))
		pe, ok := err.(*ProtocolError)
		if !ok || pe.Kind != KindExcessiveNewline {
			t.Errorf("buf %q: expected ExcessiveNewline, got %v", buf, err)
		}
	}
}

func TestProbe_UnsupportedFrame(t *testing.T) {
	err := Probe(NewCursor([]byte("@nope\r\n")))
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Kind != KindUnsupportedFrame {
		t.Errorf("expected UnsupportedFrame, got %v", err)
	}
}

func TestProbe_ConversionError(t *testing.T) {
	err := Probe(NewCursor([]byte("$abc\r\n")))
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Kind != KindConversion {
		t.Errorf("expected ConversionError, got %v", err)
	}
}

func TestProbe_BulkNegativeLengthOtherThanNull(t *testing.T) {
	err := Probe(NewCursor([]byte("$-2\r\n\r\n")))
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Kind != KindConversion {
		t.Errorf("expected ConversionError for $-2, got %v", err)
	}
}

func TestDecodeBulk_NegativeLengthOtherThanNull(t *testing.T) {
	_, err := Decode(NewCursor([]byte("$-2\r\n\r\n")))
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Kind != KindConversion {
		t.Errorf("expected ConversionError for $-2, got %v", err)
	}
}

func TestProbe_PartialBufferLeavesRestUnread(t *testing.T) {
	// Two frames back to back; probing should stop after the first.
	buf := []byte("+OK\r\n:5\r\n")
	c := NewCursor(buf)
	if err := Probe(c); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if c.Pos() != 5 {
		t.Errorf("expected cursor at offset 5 after first frame, got %d", c.Pos())
	}
}

func TestDecodeArray_Nested(t *testing.T) {
	buf := EncodeBytes(ArrayOf(
		BulkFromString("LOLWUT"),
		ArrayOf(BulkFromString("5")),
	))
	c := NewCursor(buf)
	f, err := Decode(c)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Kind != KindArray || len(f.Elems) != 2 {
		t.Fatalf("unexpected shape: %v", f)
	}
	if f.Elems[1].Kind != KindArray || len(f.Elems[1].Elems) != 1 {
		t.Errorf("expected nested array of length 1, got %v", f.Elems[1])
	}
}
