package bridge

import (
    "bytes"
    "context"
    "errors"
    "net"
    "testing"
    "time"
)

func TestBridgeReadWrite(t *testing.T) {
    l, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil {
        t.Fatalf("listen: %v", err)
    }
    defer l.Close()

    served := make(chan net.Conn, 1)
    go func() {
        c, err := l.Accept()
        if err != nil {
            return
        }
        served <- c
    }()

    tr, err := Dial(l.Addr().String())
    if err != nil {
        t.Fatalf("dial: %v", err)
    }
    defer tr.Close()

    srv := <-served
    defer srv.Close()

    if _, err := srv.Write([]byte{0x10, 0x41, 0x7e}); err != nil {
        t.Fatalf("server write: %v", err)
    }
    chunk, err := tr.ReadChunk(context.Background(), 16)
    if err != nil {
        t.Fatalf("read chunk: %v", err)
    }
    if !bytes.Equal(chunk, []byte{0x10, 0x41, 0x7e}) {
        t.Fatalf("chunk = %x", chunk)
    }

    if err := tr.WriteChunk([]byte{0x0c, 0x7e}); err != nil {
        t.Fatalf("write chunk: %v", err)
    }
    got := make([]byte, 2)
    _ = srv.SetReadDeadline(time.Now().Add(time.Second))
    if _, err := srv.Read(got); err != nil {
        t.Fatalf("server read: %v", err)
    }
    if !bytes.Equal(got, []byte{0x0c, 0x7e}) {
        t.Fatalf("server got %x", got)
    }
}

func TestBridgeReadUnblocksOnCancel(t *testing.T) {
    l, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil {
        t.Fatalf("listen: %v", err)
    }
    defer l.Close()
    go func() {
        for {
            c, err := l.Accept()
            if err != nil {
                return
            }
            defer c.Close()
        }
    }()

    tr, err := Dial(l.Addr().String())
    if err != nil {
        t.Fatalf("dial: %v", err)
    }
    defer tr.Close()

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan error, 1)
    go func() {
        _, err := tr.ReadChunk(ctx, 16)
        done <- err
    }()
    time.Sleep(20 * time.Millisecond)
    cancel()

    select {
    case err := <-done:
        if !errors.Is(err, context.Canceled) {
            t.Fatalf("ReadChunk = %v, want context.Canceled", err)
        }
    case <-time.After(2 * time.Second):
        t.Fatalf("ReadChunk did not observe cancellation")
    }
}
