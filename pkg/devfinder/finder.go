package devfinder

import "fmt"

// NotFoundReason enumerates why resolution produced no usable endpoint.
type NotFoundReason int

const (
    // NotFoundNone means resolution succeeded.
    NotFoundNone NotFoundReason = iota
    NoMatchingInterface
    Ambiguous
    KernelDriverActiveNoChardev
    ExplicitTargetAbsent
)

func (r NotFoundReason) String() string {
    switch r {
    case NotFoundNone:
        return "found"
    case NoMatchingInterface:
        return "no matching interface"
    case Ambiguous:
        return "ambiguous match"
    case KernelDriverActiveNoChardev:
        return "kernel driver active without character device"
    case ExplicitTargetAbsent:
        return "explicit target absent"
    default:
        return "unknown"
    }
}

// Hint returns operator-facing remediation text for the reason.
func (r NotFoundReason) Hint() string {
    switch r {
    case NoMatchingInterface:
        return "no DIAG-looking interface was found; plug the modem in, or pass an explicit vid:pid, bus:addr or device path"
    case Ambiguous:
        return "several devices match; add bus:addr or :cfg:intf refinements to pick one"
    case KernelDriverActiveNoChardev:
        return "a kernel driver holds the interface but exposes no serial device; pass a device path directly or unbind the driver"
    case ExplicitTargetAbsent:
        return "the requested device or interface is not attached; check the identifiers against lsusb output"
    default:
        return ""
    }
}

// ResolutionError is the fatal startup error carrying a not-found reason.
type ResolutionError struct {
    Reason NotFoundReason
}

func (e *ResolutionError) Error() string {
    return fmt.Sprintf("device resolution failed (%s): %s", e.Reason, e.Reason.Hint())
}

// Resolved is the outcome of device selection. Exactly one of the three
// shapes is populated: a bound device/interface pair to claim raw, a CharDev
// path to open through the kernel driver instead, or a not-found Reason.
type Resolved struct {
    Device  Device
    Iface   Interface
    CharDev string
    Reason  NotFoundReason
}

// Found reports whether resolution produced a usable endpoint.
func (r Resolved) Found() bool { return r.Reason == NotFoundNone }

// matchRule is one interface-signature heuristic. The primary rule carries
// the DIAG-specific protocol value; the fallback accepts any vendor-specific
// interface with two endpoints.
type matchRule struct {
    class, subClass, protocol uint8
    numEndpoints              int
}

var matchRules = []matchRule{
    {class: 0xff, subClass: 0xff, protocol: 0x30, numEndpoints: 2},
    {class: 0xff, subClass: 0xff, protocol: 0xff, numEndpoints: 2},
}

func (r matchRule) matches(i Interface) bool {
    return i.Class == r.class && i.SubClass == r.subClass &&
        i.Protocol == r.protocol && i.NumEndpoints == r.numEndpoints
}

// Resolve applies the selection algorithm to an already-enumerated device
// list. Find is the live-system entry point; Resolve is separate so the
// matching logic is testable against synthetic listings.
func Resolve(spec Specifier, devices []Device) Resolved {
    switch spec.Kind {
    case SpecAuto:
        // All devices are tried against the primary rule before any
        // fallback match is considered.
        for _, rule := range matchRules {
            for _, dev := range devices {
                for _, intf := range dev.Interfaces {
                    if rule.matches(intf) {
                        return bind(dev, intf)
                    }
                }
            }
        }
        return Resolved{Reason: NoMatchingInterface}

    case SpecVidPid, SpecBusAddr:
        var matches []Device
        for _, dev := range devices {
            if spec.Kind == SpecVidPid && (dev.Vendor != spec.Vendor || dev.Product != spec.Product) {
                continue
            }
            if spec.Kind == SpecBusAddr && (dev.Bus != spec.Bus || dev.Address != spec.Address) {
                continue
            }
            matches = append(matches, dev)
        }
        switch {
        case len(matches) == 0:
            return Resolved{Reason: ExplicitTargetAbsent}
        case len(matches) > 1:
            return Resolved{Reason: Ambiguous}
        }
        dev := matches[0]

        if spec.Config >= 0 {
            // Explicit cfg:intf binds directly, no signature matching.
            for _, intf := range dev.Interfaces {
                if intf.Config == spec.Config && intf.Number == spec.Interface {
                    return bind(dev, intf)
                }
            }
            return Resolved{Reason: ExplicitTargetAbsent}
        }
        for _, rule := range matchRules {
            for _, intf := range dev.Interfaces {
                if rule.matches(intf) {
                    return bind(dev, intf)
                }
            }
        }
        return Resolved{Reason: NoMatchingInterface}

    default:
        return Resolved{Reason: ExplicitTargetAbsent}
    }
}

// bind finalizes a device/interface choice. A mounted character device is
// always preferred over a raw claim: it avoids fighting the kernel driver
// for the interface and works without elevated usbfs access.
func bind(dev Device, intf Interface) Resolved {
    if intf.CharDev != "" {
        return Resolved{Device: dev, Iface: intf, CharDev: intf.CharDev}
    }
    if intf.Driver != "" {
        return Resolved{Device: dev, Iface: intf, Reason: KernelDriverActiveNoChardev}
    }
    return Resolved{Device: dev, Iface: intf}
}

// Find enumerates the live system and resolves spec against it.
func Find(spec Specifier) (Resolved, error) {
    devices, err := Scan(SysfsUSBPath)
    if err != nil {
        return Resolved{}, fmt.Errorf("scanning %s: %w", SysfsUSBPath, err)
    }
    res := Resolve(spec, devices)
    if !res.Found() {
        return res, &ResolutionError{Reason: res.Reason}
    }
    return res, nil
}
