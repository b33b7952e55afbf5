package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// DefaultTimeout bounds every connect and every request/response round trip.
const DefaultTimeout = 700 * time.Millisecond

// Conn is an open control channel to a daemon.
type Conn struct {
	conn    net.Conn
	parser  *Parser
	writer  *Writer
	timeout time.Duration
}

// Dial connects to addr. The connect is bounded by timeout on its own, so a
// slow connect does not eat into the budget of later round trips.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "connect " + addr, Err: err}
	}
	return NewConn(conn, timeout), nil
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn, timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Conn{
		conn:    conn,
		parser:  NewParser(conn),
		writer:  NewWriter(conn),
		timeout: timeout,
	}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Send writes one request line.
func (c *Conn) Send(id uint64, method string, params any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return &TransportError{Op: "send " + method, Err: err}
	}
	if err := c.writer.WriteRequest(id, method, params); err != nil {
		return &TransportError{Op: "send " + method, Err: err}
	}
	return nil
}

// ReadResponse reads lines until the response for expectedID arrives.
// Blank lines and responses for other ids are skipped. The deadline is fixed
// when the call starts and is not extended by skipped lines.
func (c *Conn) ReadResponse(expectedID uint64) (*Response, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, &TransportError{Err: err}
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		line, err := c.parser.ReadLine()
		if err != nil {
			var protoErr *ProtocolError
			switch {
			case errors.As(err, &protoErr):
				return nil, err
			case errors.Is(err, io.EOF):
				return nil, &TransportError{Err: ErrConnectionClosed}
			case errors.Is(err, os.ErrDeadlineExceeded):
				return nil, &TransportError{Err: ErrTimeout}
			default:
				return nil, &TransportError{Err: err}
			}
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		resp, ok, err := ParseResponse(line)
		if err != nil {
			return nil, err
		}
		if ok && resp.ID == expectedID {
			return resp, nil
		}
	}
}

// Call sends a request and waits for its result.
func (c *Conn) Call(id uint64, method string, params any) ([]byte, error) {
	if err := c.Send(id, method, params); err != nil {
		return nil, err
	}
	resp, err := c.ReadResponse(id)
	if err != nil {
		return nil, err
	}
	if message, ok := resp.ErrorMessage(); ok {
		return nil, &RemoteError{Message: message}
	}
	if resp.Result == nil {
		return nil, &ProtocolError{Err: ErrMissingResult}
	}
	return resp.Result, nil
}
