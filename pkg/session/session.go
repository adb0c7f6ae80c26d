// Package session owns one transport and runs the read/dispatch loop that
// turns its raw byte stream into DIAG packets for registered modules.
package session

import (
    "context"
    "errors"
    "fmt"
    "io"
    "sync"

    "go.uber.org/zap"

    "github.com/killvxk/QCSuper/pkg/diag"
    "github.com/killvxk/QCSuper/pkg/transport"
)

// maxChunk is the per-read ceiling handed to the transport.
const maxChunk = 1 << 20

// ErrModemUnavailable is returned by Run when the device answers with a bare
// trailer byte, its way of saying the DIAG port is not serving.
var ErrModemUnavailable = errors.New("the modem seems to be unavailable")

// Session binds one Transport to an ordered list of modules.
//
// The read loop runs on a single goroutine via Run. SendRequest may be
// called concurrently with the loop; outbound writes are serialized by an
// internal lock so transports only ever see one writer.
type Session struct {
    tr  transport.Transport
    log *zap.Logger

    // registration order is dispatch order and reverse teardown order
    modules []Module

    writeMu sync.Mutex

    // awaitingFirstFrame is true until the first decapsulation attempt.
    // The first frame observed after opening a live transport may be the
    // tail of a frame already in flight, so only that one is decoded
    // strictly and skipped silently on failure. Once streaming, the state
    // never reverts.
    awaitingFirstFrame bool

    closeOnce sync.Once
    closeErr  error
}

// New creates a session owning tr. The transport must not be shared with
// anything else. A nil logger falls back to the global one.
func New(tr transport.Transport, log *zap.Logger) *Session {
    if log == nil {
        log = zap.L()
    }
    return &Session{tr: tr, log: log, awaitingFirstFrame: true}
}

// Register appends a module. Registration must happen before Run starts.
func (s *Session) Register(m Module) { s.modules = append(s.modules, m) }

// SendRequest encapsulates and writes one DIAG request. A write failure is
// logged and returned but never terminates the read loop: transient write
// faults (permissions, unplug race) must not abort an otherwise-healthy
// session.
func (s *Session) SendRequest(typeID uint8, payload []byte) error {
    frame := diag.Encapsulate(typeID, payload)

    s.writeMu.Lock()
    err := s.tr.WriteChunk(frame)
    s.writeMu.Unlock()
    if err != nil {
        s.log.Warn("can't write to the device; check permissions, or whether it was unplugged",
            zap.Uint8("type", typeID), zap.Error(err))
        return err
    }
    return nil
}

// Run executes the read/dispatch loop until the transport fails, the modem
// reports unavailability, or ctx is cancelled. The session is torn down on
// every exit path; Run's error says why the loop ended (nil is never
// returned, a session has no successful end by itself).
func (s *Session) Run(ctx context.Context) (err error) {
    defer func() {
        if cerr := s.Close(); cerr != nil && err == nil {
            err = cerr
        }
    }()

    raw := make([]byte, 0, 4096)
    for {
        // Accumulate chunks until the buffer ends with the trailer byte,
        // checking for cancellation at every step.
        raw = raw[:0]
        for len(raw) == 0 || raw[len(raw)-1] != diag.Trailer {
            if err := ctx.Err(); err != nil {
                return err
            }
            chunk, err := s.tr.ReadChunk(ctx, maxChunk)
            if err != nil {
                if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
                    return err
                }
                return fmt.Errorf("reading from %s transport: %w", s.tr.Kind(), err)
            }
            raw = append(raw, chunk...)
        }

        if len(raw) == 1 {
            // A bare trailer is the device's unavailability signal.
            return ErrModemUnavailable
        }

        pkt, derr := diag.Decapsulate(raw, s.awaitingFirstFrame)
        wasFirst := s.awaitingFirstFrame
        s.awaitingFirstFrame = false
        if derr != nil {
            // Only reachable on the first frame: an expected partial tail,
            // skipped without dispatching.
            if wasFirst {
                s.log.Debug("skipped partial first frame", zap.Error(derr))
            }
            continue
        }

        for _, m := range s.modules {
            m.OnPacket(pkt)
        }
    }
}

// Close disposes the transport, then the modules in reverse registration
// order. It is idempotent and safe on a session whose loop never ran.
func (s *Session) Close() error {
    s.closeOnce.Do(func() {
        s.closeErr = s.tr.Close()
        for i := len(s.modules) - 1; i >= 0; i-- {
            if c, ok := s.modules[i].(io.Closer); ok {
                if err := c.Close(); err != nil && s.closeErr == nil {
                    s.closeErr = err
                }
            }
        }
    })
    return s.closeErr
}
