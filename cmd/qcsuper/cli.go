package main

import "flag"

// Options holds CLI options for the bridge.
type Options struct {
    ConfigPath string
    Device     string
    Bridge     string
    Replay     string
    Record     string
    Format     string
    Verbose    bool
}

// ParseFlags parses CLI flags from args and returns Options. Flags override
// the corresponding config file keys.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("qcsuper", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.Device, "usb-modem", "", `DIAG device specifier: "auto", a serial device path, "vvvv:pppp[:cfg:intf]" (hex) or "bbb:aaa[:cfg:intf]" (decimal)`)
    fs.StringVar(&opts.Bridge, "bridge", "", "Read from a forwarded debug-bridge socket (host:port) instead of a local device")
    fs.StringVar(&opts.Replay, "replay", "", "Read a captured DIAG stream from a file instead of a live device")
    fs.StringVar(&opts.Record, "record", "", `Record packets to this file ("-" or empty for stdout); appends when it exists`)
    fs.StringVar(&opts.Format, "format", "", "Record format: json or cbor")
    fs.BoolVar(&opts.Verbose, "v", false, "Log each received or sent packet")
    _ = fs.Parse(args)
    return opts
}
