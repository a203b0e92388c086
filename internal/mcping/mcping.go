// Package mcping queries a Minecraft server with the server list ping and
// decodes the status response.
package mcping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Tnze/go-mc/bot"
)

// protocolVersion is sent in the handshake; servers answer status requests
// for any version.
const protocolVersion = 47

// ErrMalformed marks responses that do not follow the protocol.
var ErrMalformed = errors.New("malformed status response")

// UnreachableError is returned when the server cannot be reached or stops
// answering before the deadline.
type UnreachableError struct {
	Addr string
	Err  error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("server %s unreachable: %v", e.Addr, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// IsUnreachable reports whether err means the server was not accepting
// connections, as opposed to a protocol or decode failure.
func IsUnreachable(err error) bool {
	var target *UnreachableError
	return errors.As(err, &target)
}

// Players holds the player counts from a status response.
type Players struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

// Version holds the server version from a status response.
type Version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// Result is a decoded status response.
type Result struct {
	Version     Version       `json:"version"`
	Players     Players       `json:"players"`
	Description string        `json:"-"`
	Latency     time.Duration `json:"-"`
}

// pingFunc runs the status exchange on an open connection.
type pingFunc func(conn net.Conn, protocol int) ([]byte, time.Duration, error)

// Client queries server status.
type Client struct {
	timeout time.Duration
	dialer  net.Dialer
	ping    pingFunc
}

// NewClient returns a client that bounds each query by timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{timeout: timeout, ping: bot.PingAndListConn}
}

// Status performs one status query against host:port.
func (c *Client) Status(ctx context.Context, host string, port int) (Result, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{}, &UnreachableError{Addr: addr, Err: err}
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	body, latency, err := c.ping(conn, protocolVersion)
	if err != nil {
		if timedOut(ctx, deadline, err) {
			return Result{}, &UnreachableError{Addr: addr, Err: err}
		}
		return Result{}, fmt.Errorf("status query %s: %w", addr, err)
	}

	result, err := decodeStatus(body)
	if err != nil {
		return Result{}, err
	}
	result.Latency = latency
	return result, nil
}

// timedOut reports whether a failed exchange ran into the query deadline. The
// ping library does not always wrap the underlying network error, so the
// deadline itself is checked as well.
func timedOut(ctx context.Context, deadline time.Time, err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return ctx.Err() != nil || (!deadline.IsZero() && !time.Now().Before(deadline))
}

func decodeStatus(body []byte) (Result, error) {
	var raw struct {
		Version     Version         `json:"version"`
		Players     Players         `json:"players"`
		Description json.RawMessage `json:"description"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	result := Result{Version: raw.Version, Players: raw.Players}
	if len(raw.Description) > 0 {
		var text string
		if err := json.Unmarshal(raw.Description, &text); err == nil {
			result.Description = text
		} else {
			var chat struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw.Description, &chat); err == nil {
				result.Description = chat.Text
			}
		}
	}
	return result, nil
}
