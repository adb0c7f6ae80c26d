package session

import (
    "bytes"
    "context"
    "errors"
    "testing"
    "time"

    "github.com/killvxk/QCSuper/pkg/diag"
    "github.com/killvxk/QCSuper/pkg/transport"
)

var errStreamEnd = errors.New("stream end")

// stubTransport plays back scripted chunks, then fails reads with endErr.
type stubTransport struct {
    chunks   [][]byte
    idx      int
    endErr   error
    writes   [][]byte
    writeErr error
    closed   int
}

func (s *stubTransport) Kind() transport.Kind { return transport.KindReplay }

func (s *stubTransport) ReadChunk(ctx context.Context, max int) ([]byte, error) {
    if s.idx < len(s.chunks) {
        c := s.chunks[s.idx]
        s.idx++
        return c, nil
    }
    if s.endErr != nil {
        return nil, s.endErr
    }
    <-ctx.Done()
    return nil, ctx.Err()
}

func (s *stubTransport) WriteChunk(b []byte) error {
    if s.writeErr != nil {
        return s.writeErr
    }
    s.writes = append(s.writes, append([]byte(nil), b...))
    return nil
}

func (s *stubTransport) Close() error {
    s.closed++
    return nil
}

// recordingModule captures dispatched packets; closes go to the shared
// teardown log.
type recordingModule struct {
    name    string
    packets []diag.Packet
    closes  *[]string
}

func (m *recordingModule) OnPacket(p diag.Packet) {
    m.packets = append(m.packets, diag.Packet{Type: p.Type, Payload: append([]byte(nil), p.Payload...)})
}

func (m *recordingModule) Close() error {
    if m.closes != nil {
        *m.closes = append(*m.closes, m.name)
    }
    return nil
}

func TestRunDispatchesPacketsInOrder(t *testing.T) {
    tr := &stubTransport{
        chunks: [][]byte{
            diag.Encapsulate(0x01, []byte("A")),
            diag.Encapsulate(0x02, []byte("BC")),
        },
        endErr: errStreamEnd,
    }
    mod := &recordingModule{}
    s := New(tr, nil)
    s.Register(mod)

    err := s.Run(context.Background())
    if !errors.Is(err, errStreamEnd) {
        t.Fatalf("Run = %v, want wrapped stream end", err)
    }
    if len(mod.packets) != 2 {
        t.Fatalf("got %d packets, want 2", len(mod.packets))
    }
    if mod.packets[0].Type != 0x01 || !bytes.Equal(mod.packets[0].Payload, []byte("A")) {
        t.Fatalf("first packet = %+v", mod.packets[0])
    }
    if mod.packets[1].Type != 0x02 || !bytes.Equal(mod.packets[1].Payload, []byte("BC")) {
        t.Fatalf("second packet = %+v", mod.packets[1])
    }
    if tr.closed == 0 {
        t.Fatalf("transport not disposed on loop exit")
    }
}

func TestRunSkipsPartialFirstFrameOnce(t *testing.T) {
    // The first chunk imitates the tail of a frame already in flight: it
    // ends with a trailer but cannot be strictly decoded.
    tr := &stubTransport{
        chunks: [][]byte{
            {0x41, 0x42, 0x43, diag.Trailer},
            diag.Encapsulate(0x10, []byte("ok")),
        },
        endErr: errStreamEnd,
    }
    mod := &recordingModule{}
    s := New(tr, nil)
    s.Register(mod)

    if s.awaitingFirstFrame != true {
        t.Fatalf("session not awaiting first frame")
    }
    _ = s.Run(context.Background())

    if s.awaitingFirstFrame {
        t.Fatalf("session still awaiting first frame after decode attempt")
    }
    if len(mod.packets) != 1 {
        t.Fatalf("got %d dispatches, want exactly 1 (the garbled frame is skipped)", len(mod.packets))
    }
    if mod.packets[0].Type != 0x10 {
        t.Fatalf("dispatched packet = %+v", mod.packets[0])
    }
}

func TestRunStaysPermissiveAfterLock(t *testing.T) {
    corrupted := diag.Encapsulate(0x02, []byte("damaged"))
    corrupted[3] ^= 0xff // checksum no longer matches

    tr := &stubTransport{
        chunks: [][]byte{
            diag.Encapsulate(0x01, []byte("good")),
            corrupted,
            diag.Encapsulate(0x03, []byte("after")),
        },
        endErr: errStreamEnd,
    }
    mod := &recordingModule{}
    s := New(tr, nil)
    s.Register(mod)
    _ = s.Run(context.Background())

    // The corrupted frame is dispatched best-effort rather than dropped or
    // fatal, and the following good frame still arrives.
    if len(mod.packets) != 3 {
        t.Fatalf("got %d dispatches, want 3", len(mod.packets))
    }
    if mod.packets[2].Type != 0x03 || !bytes.Equal(mod.packets[2].Payload, []byte("after")) {
        t.Fatalf("post-corruption packet = %+v", mod.packets[2])
    }
}

func TestRunTrailerOnlyMeansUnavailable(t *testing.T) {
    tr := &stubTransport{chunks: [][]byte{{diag.Trailer}}}
    s := New(tr, nil)

    err := s.Run(context.Background())
    if !errors.Is(err, ErrModemUnavailable) {
        t.Fatalf("Run = %v, want ErrModemUnavailable", err)
    }
    if tr.closed == 0 {
        t.Fatalf("transport not disposed")
    }
}

func TestSendRequestWriteFailureDoesNotStopLoop(t *testing.T) {
    tr := &stubTransport{
        chunks: [][]byte{
            diag.Encapsulate(0x01, []byte("A")),
            diag.Encapsulate(0x02, []byte("B")),
        },
        endErr:   errStreamEnd,
        writeErr: errors.New("write refused"),
    }
    mod := &recordingModule{}
    s := New(tr, nil)
    s.Register(mod)

    go func() {
        // Concurrent writer racing the read loop.
        for i := 0; i < 3; i++ {
            _ = s.SendRequest(0x0c, nil)
        }
    }()
    _ = s.Run(context.Background())

    if len(mod.packets) != 2 {
        t.Fatalf("write failures interrupted dispatch: got %d packets, want 2", len(mod.packets))
    }
}

func TestSendRequestWritesEncapsulatedFrame(t *testing.T) {
    tr := &stubTransport{}
    s := New(tr, nil)

    if err := s.SendRequest(0x7c, []byte{0x01, 0x02}); err != nil {
        t.Fatalf("send: %v", err)
    }
    if len(tr.writes) != 1 {
        t.Fatalf("got %d writes, want 1", len(tr.writes))
    }
    if !bytes.Equal(tr.writes[0], diag.Encapsulate(0x7c, []byte{0x01, 0x02})) {
        t.Fatalf("written frame %x is not the encapsulated request", tr.writes[0])
    }
}

func TestRunObservesCancellation(t *testing.T) {
    // One partial chunk with no trailer, then a read that blocks forever:
    // cancellation must unwind the accumulation loop.
    tr := &stubTransport{chunks: [][]byte{{0x01, 0x02}}}
    s := New(tr, nil)

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan error, 1)
    go func() { done <- s.Run(ctx) }()

    time.Sleep(10 * time.Millisecond)
    cancel()

    select {
    case err := <-done:
        if !errors.Is(err, context.Canceled) {
            t.Fatalf("Run = %v, want context.Canceled", err)
        }
    case <-time.After(2 * time.Second):
        t.Fatalf("Run did not observe cancellation")
    }
}

func TestCloseIsIdempotentAndReversesModuleOrder(t *testing.T) {
    var closes []string
    tr := &stubTransport{}
    s := New(tr, nil)
    s.Register(&recordingModule{name: "first", closes: &closes})
    s.Register(&recordingModule{name: "second", closes: &closes})

    if err := s.Close(); err != nil {
        t.Fatalf("close: %v", err)
    }
    if err := s.Close(); err != nil {
        t.Fatalf("second close: %v", err)
    }
    if tr.closed != 1 {
        t.Fatalf("transport closed %d times, want 1", tr.closed)
    }
    if len(closes) != 2 || closes[0] != "second" || closes[1] != "first" {
        t.Fatalf("module teardown order = %v, want [second first]", closes)
    }
}
