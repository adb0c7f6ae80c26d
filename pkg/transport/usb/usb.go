// Package usb claims a resolved DIAG interface through usbfs and moves raw
// chunks over its bulk endpoint pair.
package usb

import (
    "context"
    "fmt"
    "sync"

    "github.com/google/gousb"

    "github.com/killvxk/QCSuper/pkg/devfinder"
    "github.com/killvxk/QCSuper/pkg/transport"
)

// Transport is a USB bulk-endpoint transport. Reads and writes go to
// different endpoints, so a write may be issued while a read is in flight.
type Transport struct {
    uctx *gousb.Context
    dev  *gousb.Device
    cfg  *gousb.Config
    intf *gousb.Interface
    in   *gousb.InEndpoint
    out  *gousb.OutEndpoint

    closeOnce sync.Once
    closeErr  error
}

// Open claims the interface selected by res and locates its bulk in/out
// endpoint pair. If a kernel driver still owns the interface it fails fast
// with a KernelDriverConflict instead of attempting a competing claim.
func Open(res devfinder.Resolved) (*Transport, error) {
    if res.Iface.Driver != "" {
        return nil, &transport.KernelDriverConflict{Driver: res.Iface.Driver}
    }

    t := &Transport{uctx: gousb.NewContext()}
    if err := t.open(res); err != nil {
        _ = t.Close()
        return nil, &transport.Error{Op: "open", Kind: transport.KindUSB, Err: err}
    }
    return t, nil
}

func (t *Transport) open(res devfinder.Resolved) error {
    devs, err := t.uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
        return int(desc.Bus) == res.Device.Bus && int(desc.Address) == res.Device.Address
    })
    // OpenDevices can return both devices and an error; close extras first.
    if len(devs) > 1 {
        for _, d := range devs[1:] {
            _ = d.Close()
        }
    }
    if len(devs) == 0 {
        if err != nil {
            return fmt.Errorf("device %03d:%03d vanished since resolution: %w", res.Device.Bus, res.Device.Address, err)
        }
        return fmt.Errorf("device %03d:%03d vanished since resolution", res.Device.Bus, res.Device.Address)
    }
    t.dev = devs[0]

    cfg, err := t.dev.Config(res.Iface.Config)
    if err != nil {
        return fmt.Errorf("configuration %d: %w", res.Iface.Config, err)
    }
    t.cfg = cfg

    intf, err := cfg.Interface(res.Iface.Number, 0)
    if err != nil {
        return fmt.Errorf("claiming interface %d: %w", res.Iface.Number, err)
    }
    t.intf = intf

    inNum, outNum := -1, -1
    for _, ep := range intf.Setting.Endpoints {
        if ep.TransferType != gousb.TransferTypeBulk {
            continue
        }
        if ep.Direction == gousb.EndpointDirectionIn {
            inNum = ep.Number
        } else {
            outNum = ep.Number
        }
    }
    if inNum < 0 || outNum < 0 {
        return fmt.Errorf("interface %d has no bulk endpoint pair", res.Iface.Number)
    }
    if t.in, err = intf.InEndpoint(inNum); err != nil {
        return fmt.Errorf("in endpoint %d: %w", inNum, err)
    }
    if t.out, err = intf.OutEndpoint(outNum); err != nil {
        return fmt.Errorf("out endpoint %d: %w", outNum, err)
    }
    return nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindUSB }

func (t *Transport) ReadChunk(ctx context.Context, max int) ([]byte, error) {
    buf := make([]byte, max)
    for {
        n, err := t.in.ReadContext(ctx, buf)
        if err != nil {
            return nil, &transport.Error{Op: "read", Kind: transport.KindUSB, Err: err}
        }
        if n > 0 {
            return buf[:n], nil
        }
        if err := ctx.Err(); err != nil {
            return nil, err
        }
    }
}

func (t *Transport) WriteChunk(b []byte) error {
    if _, err := t.out.Write(b); err != nil {
        return &transport.Error{Op: "write", Kind: transport.KindUSB, Err: err}
    }
    return nil
}

// Close releases the claim and all usbfs handles. Safe to call repeatedly
// and on a partially-opened transport.
func (t *Transport) Close() error {
    t.closeOnce.Do(func() {
        if t.intf != nil {
            t.intf.Close()
        }
        if t.cfg != nil {
            t.closeErr = t.cfg.Close()
        }
        if t.dev != nil {
            if err := t.dev.Close(); t.closeErr == nil {
                t.closeErr = err
            }
        }
        if t.uctx != nil {
            if err := t.uctx.Close(); t.closeErr == nil {
                t.closeErr = err
            }
        }
    })
    return t.closeErr
}
