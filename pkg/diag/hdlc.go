// Package diag implements the HDLC-like framing used by the Qualcomm DIAG
// (QCDM) protocol: escaped payload, CRC-16/X.25 checksum, 0x7E trailer.
package diag

import "encoding/binary"

// Frame layout on the wire:
//
//  escape(type || payload || crc16le) || 0x7E
//
// The trailer byte appears unescaped only as the final byte of a frame.
// Occurrences of the trailer or escape byte inside the frame body are
// replaced by the escape byte followed by the original value XORed with
// the escape mask.
const (
    Trailer    byte = 0x7e
    Escape     byte = 0x7d
    escapeMask byte = 0x20
)

// InvalidFrameError reports a malformed frame encountered during strict
// decapsulation.
type InvalidFrameError struct {
    Reason string
}

func (e *InvalidFrameError) Error() string { return "invalid diag frame: " + e.Reason }

// crc16 computes CRC-16/X.25 (poly 0x8408 reflected, init and xorout 0xFFFF),
// the checksum carried by DIAG frames.
func crc16(data []byte) uint16 {
    crc := uint16(0xffff)
    for _, b := range data {
        crc ^= uint16(b)
        for i := 0; i < 8; i++ {
            if crc&1 != 0 {
                crc = crc>>1 ^ 0x8408
            } else {
                crc >>= 1
            }
        }
    }
    return ^crc
}

// Encapsulate builds one outbound frame from a packet type byte and payload.
// It never fails and accepts payloads of any length.
func Encapsulate(typeID uint8, payload []byte) []byte {
    body := make([]byte, 0, len(payload)+3)
    body = append(body, typeID)
    body = append(body, payload...)

    var crc [2]byte
    binary.LittleEndian.PutUint16(crc[:], crc16(body))
    body = append(body, crc[0], crc[1])

    out := make([]byte, 0, len(body)+len(body)/8+1)
    for _, b := range body {
        switch b {
        case Trailer, Escape:
            out = append(out, Escape, b^escapeMask)
        default:
            out = append(out, b)
        }
    }
    return append(out, Trailer)
}

// Decapsulate reverses Encapsulate over raw, which must end with the trailer
// byte as accumulated by the read loop.
//
// Validation (well-formed escaping, intact checksum, non-empty body) always
// runs, but its outcome is reported only when strict is true. With strict
// false a malformed frame yields a best-effort packet built from whatever
// bytes could be unescaped: right after the transport opens, the first bytes
// seen may be the tail of a frame already in flight, and once the stream is
// synchronized a single corrupted frame must not take the session down.
func Decapsulate(raw []byte, strict bool) (Packet, error) {
    var invalid string

    if len(raw) == 0 || raw[len(raw)-1] != Trailer {
        invalid = "missing trailer"
    } else {
        raw = raw[:len(raw)-1]
    }

    body := make([]byte, 0, len(raw))
    for i := 0; i < len(raw); i++ {
        switch raw[i] {
        case Escape:
            if i+1 >= len(raw) {
                if invalid == "" {
                    invalid = "dangling escape byte"
                }
                continue
            }
            i++
            body = append(body, raw[i]^escapeMask)
        case Trailer:
            // An unescaped trailer before the final byte means the buffer
            // holds a partial or spliced frame.
            if invalid == "" {
                invalid = "unescaped trailer inside frame"
            }
        default:
            body = append(body, raw[i])
        }
    }

    if len(body) >= 3 {
        want := binary.LittleEndian.Uint16(body[len(body)-2:])
        body = body[:len(body)-2]
        if invalid == "" && crc16(body) != want {
            invalid = "checksum mismatch"
        }
    } else if invalid == "" {
        invalid = "frame too short"
    }

    if len(body) == 0 {
        if strict {
            if invalid == "" {
                invalid = "empty frame"
            }
            return Packet{}, &InvalidFrameError{Reason: invalid}
        }
        return Packet{}, nil
    }

    pkt := Packet{Type: body[0], Payload: body[1:]}
    if strict && invalid != "" {
        return pkt, &InvalidFrameError{Reason: invalid}
    }
    return pkt, nil
}
