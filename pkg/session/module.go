package session

import "github.com/killvxk/QCSuper/pkg/diag"

// Module is a consumer of decoded DIAG packets. OnPacket is called once per
// decapsulated frame, in arrival order, from the session's read loop; a
// module may call back into Session.SendRequest at any time, including from
// OnPacket.
//
// A module that also implements io.Closer is closed during session teardown,
// in reverse registration order.
type Module interface {
    OnPacket(p diag.Packet)
}
