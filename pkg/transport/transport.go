package transport

import (
    "context"
    "errors"
    "fmt"
)

// Kind identifies the physical link variant behind a Transport.
type Kind int

const (
    KindUnknown Kind = iota
    KindUSB
    KindSerial
    KindBridge
    KindReplay
)

func (k Kind) String() string {
    switch k {
    case KindUSB:
        return "usb"
    case KindSerial:
        return "serial"
    case KindBridge:
        return "bridge"
    case KindReplay:
        return "replay"
    default:
        return "unknown"
    }
}

// Transport is one raw byte channel to a DIAG endpoint. A Transport is owned
// by exactly one session; nothing else reads or writes it directly.
//
// ReadChunk blocks until at least one byte is available and returns at most
// max bytes, honoring ctx cancellation between waits. WriteChunk must be safe
// to call while a ReadChunk is in flight. Close is idempotent and safe on
// partially-constructed instances.
type Transport interface {
    Kind() Kind
    ReadChunk(ctx context.Context, max int) ([]byte, error)
    WriteChunk(b []byte) error
    Close() error
}

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// Error wraps a transport fault with the operation and link kind that
// produced it.
type Error struct {
    Op   string // "open", "read" or "write"
    Kind Kind
    Err  error
}

func (e *Error) Error() string {
    return fmt.Sprintf("%s transport %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KernelDriverConflict reports that the target USB interface is owned by a
// kernel driver and cannot be claimed raw. It carries its own remediation
// text because the fix is on the operator's side.
type KernelDriverConflict struct {
    Driver string
}

func (e *KernelDriverConflict) Error() string {
    who := "a kernel driver"
    if e.Driver != "" {
        who = "the " + e.Driver + " kernel driver"
    }
    return "the USB interface is claimed by " + who +
        "; pass the exposed serial device directly (e.g. /dev/ttyUSB2 or /dev/ttyHS0), or unbind the driver"
}
