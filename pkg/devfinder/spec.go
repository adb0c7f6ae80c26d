// Package devfinder resolves a user-supplied device specifier to a concrete
// DIAG endpoint: a USB interface to claim raw, or a kernel-exposed character
// device to open instead.
package devfinder

import (
    "fmt"
    "regexp"
    "strconv"
    "strings"
)

// SpecKind is the parsed shape of a device specifier.
type SpecKind int

const (
    SpecInvalid SpecKind = iota
    SpecAuto
    SpecPath
    SpecVidPid
    SpecBusAddr
)

// Specifier is the parsed, immutable form of the --usb-modem argument.
//
// Accepted syntaxes:
//
//  auto                    heuristic interface matching across all devices
//  /dev/ttyUSB2, COM3      serial/character device path, used as-is
//  vvvv:pppp[:cfg:intf]    hex vendor:product, zero-padded to four digits
//  bbb:aaa[:cfg:intf]      decimal bus:address, zero-padded to three digits
type Specifier struct {
    Kind    SpecKind
    Path    string
    Vendor  uint16
    Product uint16
    Bus     int
    Address int
    // Config/Interface are the optional bConfigurationValue and
    // bInterfaceNumber refinements; -1 when not given.
    Config    int
    Interface int
}

var (
    vidPidRe  = regexp.MustCompile(`^([0-9a-fA-F]{4}):([0-9a-fA-F]{4})(?::(\d+):(\d+))?$`)
    busAddrRe = regexp.MustCompile(`^(\d{3}):(\d{3})(?::(\d+):(\d+))?$`)
    comPortRe = regexp.MustCompile(`^COM\d+$`)
)

// ParseSpecifier parses a device specifier string. Digit padding matters:
// "05c6:9091" is vendor:product while "001:003" is bus:address.
func ParseSpecifier(s string) (Specifier, error) {
    spec := Specifier{Config: -1, Interface: -1}
    s = strings.TrimSpace(s)

    switch {
    case s == "":
        return spec, fmt.Errorf("empty device specifier")
    case s == "auto":
        spec.Kind = SpecAuto
        return spec, nil
    case strings.ContainsRune(s, '/') || comPortRe.MatchString(s):
        spec.Kind = SpecPath
        spec.Path = s
        return spec, nil
    }

    // bus:addr is tried first: it is all-decimal, so it can never be
    // mistaken for a hex vendor:product thanks to the 3-digit padding.
    if m := busAddrRe.FindStringSubmatch(s); m != nil {
        spec.Kind = SpecBusAddr
        spec.Bus, _ = strconv.Atoi(m[1])
        spec.Address, _ = strconv.Atoi(m[2])
        if err := spec.parseRefinements(m[3], m[4]); err != nil {
            return Specifier{}, err
        }
        return spec, nil
    }

    if m := vidPidRe.FindStringSubmatch(s); m != nil {
        spec.Kind = SpecVidPid
        v, _ := strconv.ParseUint(m[1], 16, 16)
        p, _ := strconv.ParseUint(m[2], 16, 16)
        spec.Vendor, spec.Product = uint16(v), uint16(p)
        if err := spec.parseRefinements(m[3], m[4]); err != nil {
            return Specifier{}, err
        }
        return spec, nil
    }

    return Specifier{}, fmt.Errorf("unrecognized device specifier %q (check digit padding, see --help)", s)
}

func (s *Specifier) parseRefinements(cfg, intf string) error {
    if cfg == "" {
        return nil
    }
    c, err := strconv.Atoi(cfg)
    if err != nil {
        return fmt.Errorf("invalid configuration value %q", cfg)
    }
    i, err := strconv.Atoi(intf)
    if err != nil {
        return fmt.Errorf("invalid interface number %q", intf)
    }
    s.Config, s.Interface = c, i
    return nil
}
