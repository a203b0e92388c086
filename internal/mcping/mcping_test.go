package mcping

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"
)

type fakeServer struct {
	listener  net.Listener
	response  string
	handshake chan handshakeInfo
}

type handshakeInfo struct {
	host      string
	intention int32
}

func startFakeServer(t *testing.T, response string) *fakeServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &fakeServer{
		listener:  listener,
		response:  response,
		handshake: make(chan handshakeInfo, 1),
	}
	go srv.serve()
	t.Cleanup(func() { _ = listener.Close() })
	return srv
}

func (s *fakeServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) serve() {
	raw, err := s.listener.Accept()
	if err != nil {
		return
	}
	defer raw.Close()
	conn := mcnet.WrapConn(raw)

	var p pk.Packet
	if err := conn.ReadPacket(&p); err != nil {
		return
	}
	var (
		protocol, intention pk.VarInt
		host                pk.String
		port                pk.UnsignedShort
	)
	if err := p.Scan(&protocol, &host, &port, &intention); err != nil {
		return
	}
	s.handshake <- handshakeInfo{host: string(host), intention: int32(intention)}

	if err := conn.ReadPacket(&p); err != nil {
		return
	}
	if err := conn.WritePacket(pk.Marshal(0x00, pk.String(s.response))); err != nil {
		return
	}

	if err := conn.ReadPacket(&p); err != nil {
		return
	}
	var sent pk.Long
	if err := p.Scan(&sent); err != nil {
		return
	}
	_ = conn.WritePacket(pk.Marshal(0x01, sent))
}

func TestClientStatus(t *testing.T) {
	srv := startFakeServer(t, `{"version":{"name":"1.20.4","protocol":765},"players":{"max":20,"online":3},"description":{"text":"hello"}}`)

	result, err := NewClient(2*time.Second).Status(context.Background(), "127.0.0.1", srv.port())
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if result.Players.Online != 3 || result.Players.Max != 20 {
		t.Fatalf("unexpected players: %+v", result.Players)
	}
	if result.Version.Name != "1.20.4" {
		t.Fatalf("unexpected version: %+v", result.Version)
	}
	if result.Description != "hello" {
		t.Fatalf("unexpected description: %q", result.Description)
	}

	hs := <-srv.handshake
	if hs.intention != 1 || hs.host == "" {
		t.Fatalf("expected a status handshake, got %+v", hs)
	}
}

func TestClientStatus_PlainDescription(t *testing.T) {
	srv := startFakeServer(t, `{"players":{"max":10,"online":0},"description":"plain"}`)

	result, err := NewClient(2*time.Second).Status(context.Background(), "127.0.0.1", srv.port())
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if result.Description != "plain" || result.Players.Max != 10 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientStatus_Malformed(t *testing.T) {
	srv := startFakeServer(t, `not json`)

	_, err := NewClient(2*time.Second).Status(context.Background(), "127.0.0.1", srv.port())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if IsUnreachable(err) {
		t.Fatalf("malformed response must not be classified unreachable")
	}
}

func TestClientStatus_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	_, err = NewClient(time.Second).Status(context.Background(), "127.0.0.1", port)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsUnreachable(err) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestClientStatus_SilentServerIsUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		select {
		case conn := <-accepted:
			_ = conn.Close()
		default:
		}
	})

	port := listener.Addr().(*net.TCPAddr).Port
	_, err = NewClient(200*time.Millisecond).Status(context.Background(), "127.0.0.1", port)
	if !IsUnreachable(err) {
		t.Fatalf("expected unreachable error after the deadline, got %v", err)
	}
}

func TestClientStatus_ExchangeErrorIsNotUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	client := NewClient(2 * time.Second)
	client.ping = func(net.Conn, int) ([]byte, time.Duration, error) {
		return nil, 0, errors.New("unexpected packet id 0x05")
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_, err = client.Status(context.Background(), "127.0.0.1", port)
	if err == nil || IsUnreachable(err) {
		t.Fatalf("expected a plain exchange error, got %v", err)
	}
}
