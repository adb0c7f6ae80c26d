package devfinder

import (
    "os"
    "path/filepath"
    "regexp"
    "strconv"
    "strings"
)

// SysfsUSBPath is where the kernel exposes USB device metadata.
const SysfsUSBPath = "/sys/bus/usb/devices"

// Interface is one USB interface of an enumerated device, with the signature
// metadata the match rules evaluate plus kernel ownership state.
type Interface struct {
    Config       int // bConfigurationValue
    Number       int // bInterfaceNumber
    Class        uint8
    SubClass     uint8
    Protocol     uint8
    NumEndpoints int
    // Driver is the bound kernel driver name, empty when the interface is
    // free to claim.
    Driver string
    // CharDev is the /dev path of a tty node the driver exposes for this
    // interface, empty when there is none.
    CharDev string
}

// Device is one enumerated USB device.
type Device struct {
    SysfsName  string
    Bus        int
    Address    int
    Vendor     uint16
    Product    uint16
    Interfaces []Interface
}

var ttyNodeRe = regexp.MustCompile(`^tty[A-Z][A-Za-z]*\d+$`)

// Scan enumerates USB devices under root (normally SysfsUSBPath). Entries
// that cannot be parsed are skipped rather than failing the whole scan.
func Scan(root string) ([]Device, error) {
    entries, err := os.ReadDir(root)
    if err != nil {
        return nil, err
    }

    var devices []Device
    for _, entry := range entries {
        name := entry.Name()
        // Device dirs look like "1-1" or "1-1.2". Root hubs ("usb1") and
        // interface dirs ("1-1:1.0") are enumerated separately.
        if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
            continue
        }
        dev, err := parseDevice(root, name)
        if err != nil {
            continue
        }
        devices = append(devices, dev)
    }
    return devices, nil
}

func parseDevice(root, name string) (Device, error) {
    dir := filepath.Join(root, name)
    dev := Device{SysfsName: name}

    bus, err := readSysfsInt(filepath.Join(dir, "busnum"), 10)
    if err != nil {
        return dev, err
    }
    addr, err := readSysfsInt(filepath.Join(dir, "devnum"), 10)
    if err != nil {
        return dev, err
    }
    dev.Bus, dev.Address = bus, addr

    if v, err := readSysfsInt(filepath.Join(dir, "idVendor"), 16); err == nil {
        dev.Vendor = uint16(v)
    }
    if p, err := readSysfsInt(filepath.Join(dir, "idProduct"), 16); err == nil {
        dev.Product = uint16(p)
    }

    // Interface dirs live next to the device dir as "<name>:<cfg>.<intf>".
    entries, err := os.ReadDir(root)
    if err != nil {
        return dev, err
    }
    prefix := name + ":"
    for _, entry := range entries {
        if !strings.HasPrefix(entry.Name(), prefix) {
            continue
        }
        intf, err := parseInterface(root, entry.Name())
        if err != nil {
            continue
        }
        dev.Interfaces = append(dev.Interfaces, intf)
    }
    return dev, nil
}

func parseInterface(root, name string) (Interface, error) {
    dir := filepath.Join(root, name)
    var intf Interface

    // "<dev>:<cfg>.<intf>" carries the configuration value in its name, but
    // the attribute files are authoritative.
    if cfg, err := readSysfsInt(filepath.Join(dir, "bConfigurationValue"), 10); err == nil {
        intf.Config = cfg
    } else if i := strings.LastIndexByte(name, ':'); i >= 0 {
        parts := strings.SplitN(name[i+1:], ".", 2)
        intf.Config, _ = strconv.Atoi(parts[0])
    }

    num, err := readSysfsInt(filepath.Join(dir, "bInterfaceNumber"), 16)
    if err != nil {
        return intf, err
    }
    intf.Number = num

    cls, err := readSysfsInt(filepath.Join(dir, "bInterfaceClass"), 16)
    if err != nil {
        return intf, err
    }
    intf.Class = uint8(cls)

    if sub, err := readSysfsInt(filepath.Join(dir, "bInterfaceSubClass"), 16); err == nil {
        intf.SubClass = uint8(sub)
    }
    if proto, err := readSysfsInt(filepath.Join(dir, "bInterfaceProtocol"), 16); err == nil {
        intf.Protocol = uint8(proto)
    }
    if n, err := readSysfsInt(filepath.Join(dir, "bNumEndpoints"), 16); err == nil {
        intf.NumEndpoints = n
    }

    if target, err := os.Readlink(filepath.Join(dir, "driver")); err == nil {
        intf.Driver = filepath.Base(target)
    }
    intf.CharDev = findCharDev(dir)
    return intf, nil
}

// findCharDev looks for a tty node exported under the interface dir. Older
// kernels place ttyUSBn directly in the interface dir, newer ones nest it
// under a "tty" subdirectory.
func findCharDev(dir string) string {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return ""
    }
    for _, entry := range entries {
        name := entry.Name()
        if name == "tty" && entry.IsDir() {
            nested, err := os.ReadDir(filepath.Join(dir, name))
            if err != nil {
                continue
            }
            for _, t := range nested {
                if ttyNodeRe.MatchString(t.Name()) {
                    return "/dev/" + t.Name()
                }
            }
            continue
        }
        if ttyNodeRe.MatchString(name) {
            return "/dev/" + name
        }
    }
    return ""
}

func readSysfsInt(path string, base int) (int, error) {
    b, err := os.ReadFile(path)
    if err != nil {
        return 0, err
    }
    s := strings.TrimSpace(string(b))
    s = strings.TrimPrefix(s, "0x")
    v, err := strconv.ParseInt(s, base, 32)
    if err != nil {
        return 0, err
    }
    return int(v), nil
}
