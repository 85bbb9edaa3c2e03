package command

import (
	"time"

	"github.com/marmos91/resrv/internal/keyspace"
	"github.com/marmos91/resrv/internal/resp"
)

// lolwutURL is the fixed Easter-egg payload appended to every LOLWUT
// response, carried forward verbatim from the original implementation's
// end-to-end test expectations.
const lolwutURL = "https://youtu.be/dQw4w9WgXcQ?si=9GzI0HV44IG4_rPi"

// Execute runs cmd against ks and returns the response frame. Every
// command-layer failure is surfaced as an Error frame ("ERR ...") rather
// than an error return: only a malformed request ever reaches here as an
// error (handled by the caller before Execute is invoked), per spec, this
// layer never terminates the connection.
func Execute(ks *keyspace.Keyspace, cmd Command) resp.Frame {
	switch cmd.Name {
	case Ping:
		if cmd.HasPingMsg {
			return resp.Simple(cmd.PingMessage)
		}
		return resp.Simple("PONG")

	case Get:
		v, err := ks.Get(cmd.Key)
		if err != nil {
			return resp.Null()
		}
		return resp.BulkString(v)

	case Set:
		ks.Set(cmd.Key, cmd.Value, cmd.Expiration)
		return resp.Simple("OK")

	case Del:
		return resp.Integer(int64(ks.Del(cmd.Keys)))

	case Exists:
		return resp.Integer(int64(ks.Exists(cmd.Keys)))

	case Increment:
		n, err := ks.Increment(cmd.Key)
		if err != nil {
			return resp.Err("ERR " + err.Error())
		}
		return resp.Integer(n)

	case Keys:
		matches, err := ks.Keys(cmd.Pattern)
		if err != nil {
			return resp.Err("ERR invalid pattern: " + err.Error())
		}
		elems := make([]resp.Frame, len(matches))
		for i, k := range matches {
			elems[i] = resp.BulkFromString(k)
		}
		return resp.Frame{Kind: resp.KindArray, Elems: elems}

	case FlushDB:
		ks.Flush()
		return resp.Simple("OK")

	case DBSize:
		return resp.Integer(int64(ks.Size()))

	case Expire:
		if ks.Expire(cmd.Key, time.Duration(cmd.ExpireSeconds)*time.Second) {
			return resp.Integer(1)
		}
		return resp.Integer(0)

	case TTL:
		ttl, hasTTL, ok := ks.TTL(cmd.Key)
		if !ok {
			return resp.Integer(-2)
		}
		if !hasTTL {
			return resp.Integer(-1)
		}
		seconds := int64(ttl / time.Second)
		if seconds < 0 {
			seconds = 0
		}
		return resp.Integer(seconds)

	case Lolwut:
		elems := append(append([]resp.Frame{}, cmd.LolwutArgs...), resp.Simple(lolwutURL))
		return resp.Frame{Kind: resp.KindArray, Elems: elems}

	case Unknown:
		return resp.Err("ERR unknown command '" + cmd.UnknownName + "'")

	default:
		return resp.Err("ERR internal: unhandled command")
	}
}
