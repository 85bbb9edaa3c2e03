package connection

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/marmos91/resrv/internal/keyspace"
	"github.com/marmos91/resrv/internal/metrics"
)

func newTestKeyspace(t *testing.T) *keyspace.Keyspace {
	t.Helper()
	ks := keyspace.New(10 * time.Millisecond)
	t.Cleanup(ks.Close)
	return ks
}

func serveOnPipe(t *testing.T, ks *keyspace.Keyspace, idleTimeout time.Duration) (client net.Conn, done chan struct{}) {
	t.Helper()
	server, client := net.Pipe()
	c := New(server, ks, idleTimeout, nil)
	done = make(chan struct{})
	go func() {
		c.Serve(context.Background())
		close(done)
	}()
	return client, done
}

func TestServe_PingPong(t *testing.T) {
	ks := newTestKeyspace(t)
	client, done := serveOnPipe(t, ks, 0)
	defer client.Close()

	if _, err := client.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reply := make([]byte, 7)
	if _, err := readFull(client, reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if string(reply) != "+PONG\r\n" {
		t.Errorf("unexpected reply: %q", reply)
	}

	client.Close()
	<-done
}

func TestServe_SetGetRoundtrip(t *testing.T) {
	ks := newTestKeyspace(t)
	client, done := serveOnPipe(t, ks, 0)
	defer client.Close()

	r := bufio.NewReader(client)

	setCmd := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"
	if _, err := client.Write([]byte(setCmd)); err != nil {
		t.Fatalf("write SET: %v", err)
	}
	reply := make([]byte, 5)
	if _, err := readFullFrom(r, reply); err != nil {
		t.Fatalf("read SET reply: %v", err)
	}
	if string(reply) != "+OK\r\n" {
		t.Fatalf("unexpected SET reply: %q", reply)
	}

	getCmd := "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"
	if _, err := client.Write([]byte(getCmd)); err != nil {
		t.Fatalf("write GET: %v", err)
	}
	reply = make([]byte, 7)
	if _, err := readFullFrom(r, reply); err != nil {
		t.Fatalf("read GET reply: %v", err)
	}
	if string(reply) != "$1\r\nv\r\n" {
		t.Errorf("unexpected GET reply: %q", reply)
	}

	client.Close()
	<-done
}

func TestServe_InvalidFrameClosesConnection(t *testing.T) {
	ks := newTestKeyspace(t)
	client, done := serveOnPipe(t, ks, 0)
	defer client.Close()

	if _, err := client.Write([]byte(":not-a-number\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after protocol error")
	}
}

func TestServe_ClientCloseStopsLoop(t *testing.T) {
	ks := newTestKeyspace(t)
	client, done := serveOnPipe(t, ks, 0)

	client.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after client close")
	}
}

func TestServe_IdleTimeoutClosesConnection(t *testing.T) {
	ks := newTestKeyspace(t)
	client, done := serveOnPipe(t, ks, 20*time.Millisecond)
	defer client.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after idle timeout")
	}
}

func TestServe_RecordsCommandMetrics(t *testing.T) {
	ks := newTestKeyspace(t)
	recorder := metrics.NewRecorder()

	server, client := net.Pipe()
	c := New(server, ks, 0, recorder)
	done := make(chan struct{})
	go func() {
		c.Serve(context.Background())
		close(done)
	}()
	defer client.Close()

	if _, err := client.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		t.Fatalf("write PING: %v", err)
	}
	reply := make([]byte, 7)
	if _, err := readFull(client, reply); err != nil {
		t.Fatalf("read PING reply: %v", err)
	}

	if _, err := client.Write([]byte("*2\r\n$4\r\nINCR\r\n$1\r\nk\r\n")); err != nil {
		t.Fatalf("write INCR: %v", err)
	}
	incrReply := make([]byte, 4)
	if _, err := readFull(client, incrReply); err != nil {
		t.Fatalf("read INCR reply: %v", err)
	}

	client.Close()
	<-done

	metricFamilies, err := recorder.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	counts := map[string]float64{}
	for _, mf := range metricFamilies {
		if mf.GetName() != "resrv_commands_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var command, outcome string
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "command":
					command = lp.GetValue()
				case "outcome":
					outcome = lp.GetValue()
				}
			}
			counts[command+"/"+outcome] = m.GetCounter().GetValue()
		}
	}

	if counts["PING/ok"] != 1 {
		t.Errorf("expected PING/ok == 1, got %v (%v)", counts["PING/ok"], counts)
	}
	if counts["INCR/ok"] != 1 {
		t.Errorf("expected INCR/ok == 1 (k starts at 0, INCR succeeds), got %v (%v)", counts["INCR/ok"], counts)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	return readFullFrom(bufio.NewReader(conn), buf)
}

func readFullFrom(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
