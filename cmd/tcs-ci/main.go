// Command tcs-ci runs the on-board Command Interpreter: it binds the
// command socket, loads any pre-configured data handlers, and services
// requests until armed-and-confirmed RESTART or a terminating signal.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"

	"github.com/tcspecial/tcs/internal/ci"
	"github.com/tcspecial/tcs/internal/config"
	"github.com/tcspecial/tcs/internal/datahandler"
	"github.com/tcspecial/tcs/internal/discovery"
	"github.com/tcspecial/tcs/internal/ephemeris"
	"github.com/tcspecial/tcs/internal/resetline"
	"github.com/tcspecial/tcs/internal/wire"
)

func main() {
	var (
		ciConfigFile      = pflag.StringP("config-file", "c", "tcs-ci.json", "CI configuration file name.")
		payloadConfigFile = pflag.StringP("payload-file", "p", "tcs-payload.json", "Pre-configured data handler file name.")
		aliasFile         = pflag.StringP("alias-file", "a", "dh-aliases.yaml", "DH alias lookup table file name.")
		verbose           = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
		gpioChip          = pflag.StringP("reset-gpio-chip", "", "", "GPIO chip for the hardware reset line, e.g. gpiochip0. Empty disables it.")
		gpioOffset        = pflag.IntP("reset-gpio-offset", "", 0, "Offset of the reset line on --reset-gpio-chip.")
		announce          = pflag.BoolP("announce", "", false, "Advertise the command socket over mDNS/DNS-SD.")
		fixedLat          = pflag.Float64P("fixed-lat", "", 0, "Fixed ground-track latitude (degrees) for beacon telemetry.")
		fixedLon          = pflag.Float64P("fixed-lon", "", 0, "Fixed ground-track longitude (degrees) for beacon telemetry.")
		withPosition      = pflag.BoolP("with-position", "", false, "Include --fixed-lat/--fixed-lon in beacon telemetry.")
		help              = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tcs-ci - spacecraft command interpreter and data handler relay fabric.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tcs-ci [options]\n\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ //nolint:exhaustruct
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})

	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	startupStamp, err := strftime.Format("%Y-%m-%d %H:%M:%S %Z", time.Now())
	if err != nil {
		startupStamp = time.Now().String()
	}

	logger.Infof("tcs-ci starting at %s", startupStamp)

	cfg, err := config.LoadCIConfig(*ciConfigFile)
	if err != nil {
		logger.Fatal("load CI config", "err", err)
	}

	payload, err := config.LoadPayloadConfig(*payloadConfigFile)
	if err != nil {
		logger.Fatal("load payload config", "err", err)
	}

	aliases, err := config.LoadAliases(*aliasFile)
	if err != nil {
		logger.Fatal("load DH aliases", "err", err)
	}

	registry := datahandler.NewManager(cfg.MaxDataHandlers)

	for _, pre := range payload.DataHandlers {
		registerPreConfig(logger, registry, pre, aliases)
	}

	opts := ci.Options{Logger: logger} //nolint:exhaustruct

	if *gpioChip != "" {
		line, err := resetline.Open(*gpioChip, *gpioOffset, false, 150*time.Millisecond)
		if err != nil {
			logger.Warn("reset line unavailable, continuing without it", "err", err)
		} else {
			opts.ResetLine = line
		}
	}

	if *withPosition {
		opts.Ephemeris = ephemeris.NewSource(ephemeris.Fixed{LatDeg: *fixedLat, LonDeg: *fixedLon})
	}

	interp, err := ci.New(cfg, registry, opts)
	if err != nil {
		logger.Fatal("construct command interpreter", "err", err)
	}

	var announcer *discovery.Announcer
	if *announce {
		_, port, splitErr := splitHostPort(cfg.ListenAddr)
		if splitErr != nil {
			logger.Warn("cannot announce, bad listen_addr", "err", splitErr)
		} else if a, err := discovery.Announce("tcs-ci", port); err != nil {
			logger.Warn("mDNS/DNS-SD announce failed", "err", err)
		} else {
			announcer = a
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("signal received, shutting down")
		interp.Stop()
	}()

	runErr := interp.Run()

	announcer.Stop()
	registry.StopAll()

	if closeErr := interp.Close(); closeErr != nil {
		logger.Warn("close command interpreter", "err", closeErr)
	}

	if runErr != nil {
		logger.Fatal("command interpreter exited with error", "err", runErr)
	}

	logger.Info("tcs-ci shut down cleanly")
}

// registerPreConfig creates (but does not yet activate) a data handler
// named in the payload config, resolving any alias first. Activation
// happens lazily on the first matching StartDH once a ground station
// supplies the OC peer address — see ci.handleDuplicateStartDH.
func registerPreConfig(logger *log.Logger, registry *datahandler.Manager, pre config.DHPreConfig, aliases config.Aliases) {
	name := aliases.Resolve(pre.Name)

	typ, err := dhTypeFromString(pre.Type)
	if err != nil {
		logger.Warn("skipping pre-configured data handler", "dh_id", pre.DHId, "err", err)
		return
	}

	cfg := datahandler.DefaultConfigFor(typ)
	cfg.Baud = pre.Baud

	if _, err := registry.Create(uint32(pre.DHId), typ, name, cfg); err != nil { //nolint:gosec
		logger.Warn("pre-configured data handler rejected", "dh_id", pre.DHId, "err", err)
	}
}

func dhTypeFromString(s string) (wire.DHType, error) {
	switch s {
	case "device":
		return wire.DHTypeDevice, nil
	case "network":
		return wire.DHTypeNetwork, nil
	default:
		return 0, fmt.Errorf("unknown data handler type %q", s)
	}
}

// splitHostPort parses addr's port for mDNS/DNS-SD announcement, which
// needs the numeric port independent of the bind host.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("split %q: %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse port %q: %w", portStr, err)
	}

	return host, port, nil
}
