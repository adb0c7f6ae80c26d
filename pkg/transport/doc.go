// Package transport defines the byte-channel contract between a resolved
// DIAG endpoint and the input session, with one subpackage per link variant:
// usb (bulk endpoints via usbfs), serialdev (kernel character device),
// bridge (forwarded debug-bridge socket) and replay (captured stream).
//
// Framing is deliberately not part of this contract; transports move opaque
// chunks and the session applies the diag codec on both paths.
package transport
