// Package replay feeds a previously captured DIAG byte stream through the
// transport contract, for offline reprocessing and tests.
package replay

import (
    "context"
    "io"
    "os"
    "sync"

    "github.com/killvxk/QCSuper/pkg/transport"
)

type Transport struct {
    r io.ReadCloser

    closeOnce sync.Once
    closeErr  error
}

// Open replays the capture file at path.
func Open(path string) (*Transport, error) {
    f, err := os.Open(path)
    if err != nil {
        return nil, &transport.Error{Op: "open", Kind: transport.KindReplay, Err: err}
    }
    return New(f), nil
}

// New replays an arbitrary stream.
func New(r io.ReadCloser) *Transport { return &Transport{r: r} }

func (t *Transport) Kind() transport.Kind { return transport.KindReplay }

func (t *Transport) ReadChunk(ctx context.Context, max int) ([]byte, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    buf := make([]byte, max)
    n, err := t.r.Read(buf)
    if n > 0 {
        return buf[:n], nil
    }
    if err == nil {
        err = io.EOF
    }
    // End of capture surfaces as a read fault; the session treats it as the
    // natural end of the stream.
    return nil, &transport.Error{Op: "read", Kind: transport.KindReplay, Err: err}
}

// WriteChunk discards outbound commands: a capture has nobody to answer them.
func (t *Transport) WriteChunk(b []byte) error { return nil }

func (t *Transport) Close() error {
    t.closeOnce.Do(func() {
        if t.r != nil {
            t.closeErr = t.r.Close()
        }
    })
    return t.closeErr
}
