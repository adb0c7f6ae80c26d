package main

import (
    "context"
    "errors"
    "io"
    "os"
    "os/signal"
    "syscall"

    "go.uber.org/zap"

    "github.com/killvxk/QCSuper/pkg/codec"
    "github.com/killvxk/QCSuper/pkg/config"
    "github.com/killvxk/QCSuper/pkg/devfinder"
    "github.com/killvxk/QCSuper/pkg/modules/recorder"
    "github.com/killvxk/QCSuper/pkg/observability"
    "github.com/killvxk/QCSuper/pkg/session"
    "github.com/killvxk/QCSuper/pkg/transport"
    "github.com/killvxk/QCSuper/pkg/transport/bridge"
    "github.com/killvxk/QCSuper/pkg/transport/replay"
    "github.com/killvxk/QCSuper/pkg/transport/serialdev"
    "github.com/killvxk/QCSuper/pkg/transport/usb"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }
    applyFlags(cfg, opts)

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    tr, err := openTransport(cfg)
    if err != nil {
        var conflict *transport.KernelDriverConflict
        if errors.As(err, &conflict) {
            zap.L().Error(conflict.Error())
            return 1
        }
        zap.L().Error("failed to open input", zap.Error(err))
        return 1
    }
    zap.L().Info("input opened", zap.Stringer("transport", tr.Kind()))

    sess := session.New(tr, zap.L())

    rec, err := buildRecorder(cfg)
    if err != nil {
        _ = tr.Close()
        zap.L().Error("failed to set up recorder", zap.Error(err))
        return 1
    }
    sess.Register(rec)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    err = sess.Run(ctx)
    switch {
    case errors.Is(err, context.Canceled):
        zap.L().Info("interrupted, shutting down")
        return 0
    case errors.Is(err, session.ErrModemUnavailable):
        zap.L().Error("the modem seems to be unavailable; is the DIAG port enabled?")
        return 1
    default:
        zap.L().Error("session ended", zap.Error(err))
        return 1
    }
}

func applyFlags(cfg *config.Config, opts Options) {
    if opts.Device != "" {
        cfg.Device = opts.Device
    }
    if opts.Bridge != "" {
        cfg.Bridge = opts.Bridge
    }
    if opts.Replay != "" {
        cfg.Replay = opts.Replay
    }
    if opts.Record != "" {
        cfg.Record.Path = opts.Record
    }
    if opts.Format != "" {
        cfg.Record.Format = opts.Format
    }
    if opts.Verbose {
        cfg.Log.Level = "debug"
    }
}

// openTransport turns the configured input into a live transport. Precedence:
// replay file, then forwarded bridge, then a local device specifier.
func openTransport(cfg *config.Config) (transport.Transport, error) {
    if cfg.Replay != "" {
        return replay.Open(cfg.Replay)
    }
    if cfg.Bridge != "" {
        return bridge.Dial(cfg.Bridge)
    }

    spec, err := devfinder.ParseSpecifier(cfg.Device)
    if err != nil {
        return nil, err
    }
    if spec.Kind == devfinder.SpecPath {
        return serialdev.Open(spec.Path, cfg.Baud)
    }

    res, err := devfinder.Find(spec)
    if err != nil {
        return nil, err
    }
    if res.CharDev != "" {
        // The kernel already exposes the interface as a serial device; use
        // that instead of a competing raw claim.
        zap.L().Info("using kernel-exposed serial device", zap.String("path", res.CharDev))
        return serialdev.Open(res.CharDev, cfg.Baud)
    }
    zap.L().Info("claiming USB interface",
        zap.Int("bus", res.Device.Bus), zap.Int("address", res.Device.Address),
        zap.Int("config", res.Iface.Config), zap.Int("interface", res.Iface.Number))
    return usb.Open(res)
}

func buildRecorder(cfg *config.Config) (*recorder.Recorder, error) {
    var sink io.WriteCloser
    if cfg.Record.Path == "" || cfg.Record.Path == "-" {
        sink = nopCloser{os.Stdout}
    } else {
        f, err := os.OpenFile(cfg.Record.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
        if err != nil {
            return nil, err
        }
        sink = f
    }

    var c codec.Codec
    if cfg.Record.Format == "cbor" {
        cc, err := codec.CBOR()
        if err != nil {
            return nil, err
        }
        c = cc
    } else {
        c = codec.JSON()
    }
    return recorder.New(sink, c, zap.L()), nil
}

// nopCloser keeps process-owned sinks (stdout) open across recorder teardown.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
