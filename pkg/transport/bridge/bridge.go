// Package bridge connects to a DIAG stream forwarded over TCP, typically an
// adb port-forward from a rooted Android device.
package bridge

import (
    "context"
    "errors"
    "net"
    "sync"
    "time"

    "github.com/killvxk/QCSuper/pkg/transport"
)

const (
    dialTimeout = 5 * time.Second
    // readPoll bounds how long a blocked read can delay a cancellation check.
    readPoll = 200 * time.Millisecond
)

type Transport struct {
    conn net.Conn

    closeOnce sync.Once
    closeErr  error
}

// Dial connects to the forwarded socket at addr (host:port).
func Dial(addr string) (*Transport, error) {
    conn, err := net.DialTimeout("tcp", addr, dialTimeout)
    if err != nil {
        return nil, &transport.Error{Op: "open", Kind: transport.KindBridge, Err: err}
    }
    return &Transport{conn: conn}, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindBridge }

func (t *Transport) ReadChunk(ctx context.Context, max int) ([]byte, error) {
    buf := make([]byte, max)
    for {
        if err := ctx.Err(); err != nil {
            return nil, err
        }
        _ = t.conn.SetReadDeadline(time.Now().Add(readPoll))
        n, err := t.conn.Read(buf)
        if n > 0 {
            return buf[:n], nil
        }
        if err != nil {
            var ne net.Error
            if errors.As(err, &ne) && ne.Timeout() {
                continue
            }
            return nil, &transport.Error{Op: "read", Kind: transport.KindBridge, Err: err}
        }
    }
}

func (t *Transport) WriteChunk(b []byte) error {
    if _, err := t.conn.Write(b); err != nil {
        return &transport.Error{Op: "write", Kind: transport.KindBridge, Err: err}
    }
    return nil
}

func (t *Transport) Close() error {
    t.closeOnce.Do(func() {
        if t.conn != nil {
            t.closeErr = t.conn.Close()
        }
    })
    return t.closeErr
}
