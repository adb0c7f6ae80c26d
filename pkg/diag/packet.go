package diag

// Well-known DIAG command/response codes seen on the type byte.
// Only the ones the bridge itself cares about are listed; consumers
// interpret the rest.
const (
    MsgVersionNumber uint8 = 0x00
    MsgESN           uint8 = 0x01
    MsgLog           uint8 = 0x10
    MsgBadCommand    uint8 = 0x13
    MsgBadParameter  uint8 = 0x14
    MsgBadLength     uint8 = 0x15
    MsgDiagVersion   uint8 = 0x1c
    MsgEventReport   uint8 = 0x60
    MsgExtMsg        uint8 = 0x79
    MsgExtBuildID    uint8 = 0x7c
)

// Packet is one decapsulated DIAG unit: a command/response code and its
// opaque payload. The payload is not interpreted at this layer.
type Packet struct {
    Type    uint8
    Payload []byte
}
