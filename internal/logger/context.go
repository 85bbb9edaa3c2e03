package logger

import "context"

// connFields carries the per-connection identity fields that every log line
// written while serving a connection should carry.
type connFields struct {
	ConnID     string
	RemoteAddr string
}

type connFieldsKey struct{}

// WithConn returns a context carrying connID/remoteAddr so that *Ctx logging
// calls made anywhere downstream automatically tag their output.
func WithConn(ctx context.Context, connID, remoteAddr string) context.Context {
	return context.WithValue(ctx, connFieldsKey{}, connFields{ConnID: connID, RemoteAddr: remoteAddr})
}

func fromContext(ctx context.Context) (connFields, bool) {
	cf, ok := ctx.Value(connFieldsKey{}).(connFields)
	return cf, ok
}
