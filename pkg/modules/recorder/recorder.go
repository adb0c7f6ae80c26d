// Package recorder is the built-in consumer module: it serializes every
// dispatched DIAG packet as a timestamped record, one per packet, for later
// reprocessing.
package recorder

import (
    "io"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/killvxk/QCSuper/pkg/codec"
    "github.com/killvxk/QCSuper/pkg/diag"
)

// Record is one serialized packet. JSON output is line-delimited;
// CBOR records are self-delimiting.
type Record struct {
    Time    time.Time `json:"time" cbor:"time"`
    Type    uint8     `json:"type" cbor:"type"`
    Payload []byte    `json:"payload" cbor:"payload"`
}

// Recorder writes records through a codec to an owned sink. It implements
// session.Module and io.Closer; the sink is closed at session teardown.
type Recorder struct {
    mu  sync.Mutex
    w   io.WriteCloser
    c   codec.Codec
    log *zap.Logger

    count   uint64
    skipped uint64

    now func() time.Time // test override
}

// New creates a recorder owning w. A nil logger falls back to the global one.
func New(w io.WriteCloser, c codec.Codec, log *zap.Logger) *Recorder {
    if log == nil {
        log = zap.L()
    }
    return &Recorder{w: w, c: c, log: log, now: time.Now}
}

// OnPacket serializes and writes one record. Serialization or write faults
// are counted and logged, never propagated: a sick consumer must not take
// the read loop down.
func (r *Recorder) OnPacket(p diag.Packet) {
    rec := Record{Time: r.now().UTC(), Type: p.Type, Payload: p.Payload}
    b, err := r.c.Marshal(rec)
    if err != nil {
        r.mu.Lock()
        r.skipped++
        r.mu.Unlock()
        r.log.Warn("failed to serialize packet record", zap.Uint8("type", p.Type), zap.Error(err))
        return
    }
    if r.c.ContentType() == "application/json" {
        b = append(b, '\n')
    }

    r.mu.Lock()
    defer r.mu.Unlock()
    if _, err := r.w.Write(b); err != nil {
        r.skipped++
        r.log.Warn("failed to write packet record", zap.Error(err))
        return
    }
    r.count++
}

// Counts reports how many records were written and how many were dropped.
func (r *Recorder) Counts() (written, skipped uint64) {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.count, r.skipped
}

// Close flushes nothing (records are unbuffered) and closes the sink.
func (r *Recorder) Close() error {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.log.Info("recorder closing", zap.Uint64("records", r.count), zap.Uint64("skipped", r.skipped))
    return r.w.Close()
}
