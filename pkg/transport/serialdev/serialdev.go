// Package serialdev talks to a DIAG port already exposed by a kernel driver
// as a character device (/dev/ttyUSB*, /dev/ttyHS*, COM*).
package serialdev

import (
    "context"
    "sync"
    "time"

    "go.bug.st/serial"

    "github.com/killvxk/QCSuper/pkg/transport"
)

// DefaultBaudRate is used when the caller does not override it. DIAG ports
// are USB CDC-style, so the value is nominal.
const DefaultBaudRate = 115200

// readPoll bounds how long a blocked read can delay a cancellation check.
const readPoll = 200 * time.Millisecond

type Transport struct {
    port serial.Port

    closeOnce sync.Once
    closeErr  error
}

// Open opens the character device at path. baud <= 0 selects DefaultBaudRate.
func Open(path string, baud int) (*Transport, error) {
    if baud <= 0 {
        baud = DefaultBaudRate
    }
    port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
    if err != nil {
        return nil, &transport.Error{Op: "open", Kind: transport.KindSerial, Err: err}
    }
    if err := port.SetReadTimeout(readPoll); err != nil {
        _ = port.Close()
        return nil, &transport.Error{Op: "open", Kind: transport.KindSerial, Err: err}
    }
    return &Transport{port: port}, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindSerial }

func (t *Transport) ReadChunk(ctx context.Context, max int) ([]byte, error) {
    buf := make([]byte, max)
    for {
        if err := ctx.Err(); err != nil {
            return nil, err
        }
        n, err := t.port.Read(buf)
        if err != nil {
            return nil, &transport.Error{Op: "read", Kind: transport.KindSerial, Err: err}
        }
        // n == 0 is the poll timeout; go around and re-check ctx.
        if n > 0 {
            return buf[:n], nil
        }
    }
}

func (t *Transport) WriteChunk(b []byte) error {
    if _, err := t.port.Write(b); err != nil {
        return &transport.Error{Op: "write", Kind: transport.KindSerial, Err: err}
    }
    return nil
}

func (t *Transport) Close() error {
    t.closeOnce.Do(func() {
        if t.port != nil {
            t.closeErr = t.port.Close()
        }
    })
    return t.closeErr
}
