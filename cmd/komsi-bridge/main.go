// Command komsi-bridge feeds a serial-attached KOMSI dashboard from a
// simulator telemetry feed.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/busdash/komsi-bridge/internal/api"
	"github.com/busdash/komsi-bridge/internal/bridge"
	"github.com/busdash/komsi-bridge/internal/config"
	"github.com/busdash/komsi-bridge/internal/db"
	"github.com/busdash/komsi-bridge/internal/feed"
	"github.com/busdash/komsi-bridge/internal/komsi"
	"github.com/busdash/komsi-bridge/internal/serialmux"
	"github.com/busdash/komsi-bridge/internal/timeutil"
	"github.com/busdash/komsi-bridge/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file")
	devMode    = flag.Bool("dev", false, "Run without dashboard hardware; frames are hex-dumped to the log")
	portPath   = flag.String("port", "", "Serial port override (e.g. /dev/ttyUSB0)")
	listen     = flag.String("listen", "", "Status API listen address override")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// hexDumpPort stands in for dashboard hardware in dev mode. Reads block
// until close so the serial monitor idles instead of spinning.
type hexDumpPort struct {
	log       zerolog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func newHexDumpPort(log zerolog.Logger) *hexDumpPort {
	return &hexDumpPort{log: log, done: make(chan struct{})}
}

func (p *hexDumpPort) Read([]byte) (int, error) {
	<-p.done
	return 0, io.EOF
}

func (p *hexDumpPort) Write(b []byte) (int, error) {
	p.log.Info().Str("frame", hex.EncodeToString(b)).Int("bytes", len(b)).Msg("dev frame")
	return len(b), nil
}

func (p *hexDumpPort) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("komsi-bridge %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
		}
	}
	if *portPath != "" {
		cfg.SerialPort = *portPath
	}
	if *listen != "" {
		cfg.HTTPListen = *listen
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	log = log.Level(level)

	log.Info().
		Str("version", version.Version).
		Str("serial_port", cfg.SerialPort).
		Str("feed", cfg.FeedListen).
		Bool("dev", *devMode).
		Msg("komsi-bridge starting")

	var mux *serialmux.Mux
	if *devMode {
		mux = serialmux.New(newHexDumpPort(log.With().Str("component", "devport").Logger()))
	} else {
		mode := serialmux.DefaultPortMode()
		mode.BaudRate = cfg.BaudRate
		mux, err = serialmux.Open(cfg.SerialPort, mode)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open dashboard serial port")
		}
	}
	defer mux.Close()

	journal, err := db.Open(cfg.JournalPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.JournalPath).Msg("failed to open journal")
	}
	defer journal.Close()

	listener, err := feed.Listen(cfg.FeedListen, log.With().Str("component", "feed").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind feed socket")
	}

	parser := &feed.Parser{SpeedUnit: cfg.SpeedUnit}
	br := bridge.New(mux, journal, parser, timeutil.RealClock{}, cfg.ResyncInterval,
		log.With().Str("component", "bridge").Logger())

	server := api.NewServer(br, journal, log.With().Str("component", "api").Logger())
	httpServer := &http.Server{Addr: cfg.HTTPListen, Handler: server.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// dashboard serial monitor: surface firmware banners and fault lines
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, dashLines := mux.Subscribe()
		defer mux.Unsubscribe(id)
		go func() {
			for line := range dashLines {
				log.Info().Str("line", line).Msg("dashboard says")
			}
		}()
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("serial monitor stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed listener stopped")
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := br.Run(ctx, listener.Lines()); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("bridge stopped")
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("listen", cfg.HTTPListen).Msg("status API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status API stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("status API shutdown")
	}
	listener.Close()
	wg.Wait()

	// Park the dashboard in the all-off state on the way out.
	if frame := br.State().Compare(komsi.New(), true, nil); len(frame) > 0 {
		if err := mux.WriteFrame(frame); err != nil {
			log.Warn().Err(err).Msg("failed to blank dashboard")
		}
	}

	log.Info().Msg("komsi-bridge stopped")
}
