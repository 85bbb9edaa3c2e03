package command

import (
	"testing"
	"time"

	"github.com/marmos91/resrv/internal/keyspace"
	"github.com/marmos91/resrv/internal/resp"
)

func newTestKeyspace(t *testing.T) *keyspace.Keyspace {
	t.Helper()
	ks := keyspace.New(10 * time.Millisecond)
	t.Cleanup(ks.Close)
	return ks
}

func TestExecute_SetThenGet(t *testing.T) {
	ks := newTestKeyspace(t)

	got := Execute(ks, Command{Name: Set, Key: "k", Value: []byte("v")})
	if !got.Equal(resp.Simple("OK")) {
		t.Errorf("unexpected SET response: %v", got)
	}

	got = Execute(ks, Command{Name: Get, Key: "k"})
	if !got.Equal(resp.BulkFromString("v")) {
		t.Errorf("unexpected GET response: %v", got)
	}
}

func TestExecute_GetMissingReturnsNull(t *testing.T) {
	ks := newTestKeyspace(t)
	got := Execute(ks, Command{Name: Get, Key: "missing"})
	if !got.Equal(resp.Null()) {
		t.Errorf("expected Null, got %v", got)
	}
}

func TestExecute_IncrementOnExpiredKeyReturnsErrorFrame(t *testing.T) {
	ks := newTestKeyspace(t)
	Execute(ks, Command{Name: Set, Key: "k", Value: []byte("5"), Expiration: time.Millisecond})
	time.Sleep(5 * time.Millisecond)

	got := Execute(ks, Command{Name: Increment, Key: "k"})
	if got.Kind != resp.KindError {
		t.Errorf("expected Error frame, got %v", got)
	}
}

func TestExecute_TTL_NoKeyNoExpiryAndRemaining(t *testing.T) {
	ks := newTestKeyspace(t)

	if got := Execute(ks, Command{Name: TTL, Key: "missing"}); !got.Equal(resp.Integer(-2)) {
		t.Errorf("expected -2 for missing key, got %v", got)
	}

	Execute(ks, Command{Name: Set, Key: "k", Value: []byte("v")})
	if got := Execute(ks, Command{Name: TTL, Key: "k"}); !got.Equal(resp.Integer(-1)) {
		t.Errorf("expected -1 for no expiry, got %v", got)
	}

	Execute(ks, Command{Name: Expire, Key: "k", ExpireSeconds: 60})
	got := Execute(ks, Command{Name: TTL, Key: "k"})
	if got.Kind != resp.KindInteger || got.Int <= 0 || got.Int > 60 {
		t.Errorf("unexpected ttl response: %v", got)
	}
}

func TestExecute_Expire_MissingKeyReturnsZero(t *testing.T) {
	ks := newTestKeyspace(t)
	got := Execute(ks, Command{Name: Expire, Key: "missing", ExpireSeconds: 10})
	if !got.Equal(resp.Integer(0)) {
		t.Errorf("expected 0 for missing key, got %v", got)
	}
}

func TestExecute_Lolwut_WrapsArgsAndAppendsFixedURL(t *testing.T) {
	ks := newTestKeyspace(t)

	args := []resp.Frame{
		resp.ArrayOf(resp.BulkFromString("Hello, Redis!"), resp.BulkFromString("Hello, World!")),
		resp.ArrayOf(resp.Integer(42), resp.Integer(1337)),
	}

	got := Execute(ks, Command{Name: Lolwut, LolwutArgs: args})

	want := resp.ArrayOf(
		resp.ArrayOf(resp.BulkFromString("Hello, Redis!"), resp.BulkFromString("Hello, World!")),
		resp.ArrayOf(resp.Integer(42), resp.Integer(1337)),
		resp.Simple("https://youtu.be/dQw4w9WgXcQ?si=9GzI0HV44IG4_rPi"),
	)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExecute_Unknown(t *testing.T) {
	ks := newTestKeyspace(t)
	got := Execute(ks, Command{Name: Unknown, UnknownName: "FOOBAR"})
	if got.Kind != resp.KindError {
		t.Errorf("expected Error frame, got %v", got)
	}
}

func TestExecute_DelAndExists(t *testing.T) {
	ks := newTestKeyspace(t)
	Execute(ks, Command{Name: Set, Key: "a", Value: []byte("1")})
	Execute(ks, Command{Name: Set, Key: "b", Value: []byte("2")})

	if got := Execute(ks, Command{Name: Exists, Keys: []string{"a", "b", "c"}}); !got.Equal(resp.Integer(2)) {
		t.Errorf("unexpected EXISTS response: %v", got)
	}
	if got := Execute(ks, Command{Name: Del, Keys: []string{"a", "c"}}); !got.Equal(resp.Integer(1)) {
		t.Errorf("unexpected DEL response: %v", got)
	}
}

func TestExecute_FlushDBAndDBSize(t *testing.T) {
	ks := newTestKeyspace(t)
	Execute(ks, Command{Name: Set, Key: "a", Value: []byte("1")})

	if got := Execute(ks, Command{Name: DBSize}); !got.Equal(resp.Integer(1)) {
		t.Errorf("unexpected DBSIZE response: %v", got)
	}
	Execute(ks, Command{Name: FlushDB})
	if got := Execute(ks, Command{Name: DBSize}); !got.Equal(resp.Integer(0)) {
		t.Errorf("expected empty db after flush, got %v", got)
	}
}
