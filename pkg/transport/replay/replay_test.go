package replay

import (
    "bytes"
    "context"
    "errors"
    "io"
    "testing"

    "github.com/killvxk/QCSuper/pkg/diag"
    "github.com/killvxk/QCSuper/pkg/transport"
)

func TestReplayFeedsCapturedStream(t *testing.T) {
    var capture bytes.Buffer
    capture.Write(diag.Encapsulate(0x01, []byte("A")))
    capture.Write(diag.Encapsulate(0x02, []byte("BC")))

    tr := New(io.NopCloser(&capture))
    defer tr.Close()

    var replayed []byte
    for {
        chunk, err := tr.ReadChunk(context.Background(), 8)
        if err != nil {
            var terr *transport.Error
            if !errors.As(err, &terr) || !errors.Is(err, io.EOF) {
                t.Fatalf("unexpected end error: %v", err)
            }
            break
        }
        replayed = append(replayed, chunk...)
    }

    want := append(diag.Encapsulate(0x01, []byte("A")), diag.Encapsulate(0x02, []byte("BC"))...)
    if !bytes.Equal(replayed, want) {
        t.Fatalf("replayed %x, want %x", replayed, want)
    }
}

func TestReplayIgnoresWritesAndClosesOnce(t *testing.T) {
    tr := New(io.NopCloser(bytes.NewReader(nil)))
    if err := tr.WriteChunk([]byte{0x7e}); err != nil {
        t.Fatalf("write: %v", err)
    }
    if err := tr.Close(); err != nil {
        t.Fatalf("close: %v", err)
    }
    if err := tr.Close(); err != nil {
        t.Fatalf("second close: %v", err)
    }
}

func TestReplayHonorsCancellation(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    tr := New(io.NopCloser(bytes.NewReader([]byte{0x7e})))
    if _, err := tr.ReadChunk(ctx, 4); !errors.Is(err, context.Canceled) {
        t.Fatalf("ReadChunk = %v, want context.Canceled", err)
    }
}
