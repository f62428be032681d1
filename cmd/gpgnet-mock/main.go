// gpgnet-mock impersonates the lobby server a game client talks GPGNet to,
// and relays the clients' MP traffic between each other over loopback, so
// lobby formation and in-game networking can be tested without real
// infrastructure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/gpgnet-mock/internal/api"
	"github.com/energizer-project/gpgnet-mock/internal/config"
	"github.com/energizer-project/gpgnet-mock/internal/events"
	"github.com/energizer-project/gpgnet-mock/internal/network"
	"github.com/energizer-project/gpgnet-mock/internal/recorder"
	"github.com/energizer-project/gpgnet-mock/internal/session"
	"github.com/energizer-project/gpgnet-mock/internal/telemetry"
	"github.com/energizer-project/gpgnet-mock/internal/util"
)

const (
	AppName    = "gpgnet-mock"
	AppVersion = telemetry.Version
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if opts.version {
		fmt.Printf("%s %s\n", AppName, AppVersion)
		return 0
	}

	// Initialize logger with defaults first (will be reconfigured after config load)
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return 1
	}
	opts.apply(cfg)

	logCfg := util.LogConfig{
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Error().Msg("configuration validation failed, please fix the errors above")
		return 1
	}

	if opts.writeConfig != "" {
		if err := cfg.SaveAs(opts.writeConfig); err != nil {
			log.Error().Err(err).Msg("failed to write config")
			return 1
		}
		log.Info().Str("path", opts.writeConfig).Msg("configuration written")
		return 0
	}

	sessionID := uuid.NewString()
	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("version", AppVersion).
		Str("session_id", sessionID).
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("arch", sysInfo.Architecture).
		Int("cores", sysInfo.CPUCores).
		Msg("starting gpgnet-mock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus(sessionID)

	rec, err := recorder.Open(cfg.Recording.Path, sessionID)
	if err != nil {
		log.Error().Err(err).Msg("failed to open recording")
		return 1
	}
	if cfg.Recording.Path != "" {
		rec = recorder.NewAsync(rec, recorder.DefaultQueueSize)
		log.Info().Str("path", cfg.Recording.Path).Msg("recording MP headers")
	}

	loop := network.NewLoop(cfg.TickInterval())

	sess := session.NewSession(cfg, eventBus, func(p *session.Player, h network.DatagramHandler) (network.Endpoint, error) {
		ep, err := network.ListenUDP(ctx, loop, cfg.Relay.BindHost, p.ProxyPort, cfg.Relay.TargetHost, h)
		if err != nil {
			return nil, err
		}
		return ep, nil
	})
	sess.SetRecorder(rec)

	type termination struct {
		reason string
		fatal  bool
	}
	termCh := make(chan termination, 1)
	sess.OnTerminate(func(reason string, fatal bool) {
		select {
		case termCh <- termination{reason: reason, fatal: fatal}:
		default:
		}
	})

	listener := network.NewControlListener(cfg.GPGNet.BindHost, cfg.GPGNet.Port, loop, sess)
	if err := listener.Listen(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start GPGNet listener")
		rec.Close()
		return 1
	}

	var mqttPublisher *telemetry.MQTTPublisher
	if cfg.MQTT.Enabled {
		mqttPublisher, err = telemetry.NewMQTTPublisher(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, api.SnapshotFunc(func(ctx context.Context) (session.Snapshot, error) {
			var snap session.Snapshot
			err := loop.Do(ctx, func() { snap = sess.Snapshot() })
			return snap, err
		}))
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Serve(ctx); err != nil {
			errCh <- fmt.Errorf("control listener: %w", err)
		}
	}()

	if mqttPublisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttPublisher.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", cfg.API.Port).Msg("starting status API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("status API server failed (non-fatal)")
			}
		}()
	}

	eventBus.Emit(ctx, events.EventSessionStarted, events.SessionPayload{})
	host, _ := cfg.HostPlayer()
	log.Info().
		Str("host", host.Name).
		Int("port", cfg.GPGNet.Port).
		Int("players", len(cfg.Players)).
		Bool("synthetic_ack", cfg.Relay.SyntheticAck).
		Dur("tick", cfg.TickInterval()).
		Msg("waiting for game clients")

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	exitCode := 0
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		stopCtx, stopCancel := context.WithTimeout(ctx, 5*time.Second)
		loop.Do(stopCtx, func() { sess.Terminate("signal "+sig.String(), false) })
		stopCancel()
	case t := <-termCh:
		if t.fatal {
			exitCode = 1
		}
		log.Info().Str("reason", t.reason).Msg("session ended")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
		exitCode = 1
	}

	log.Info().Int("open_connections", listener.Count()).Msg("initiating graceful shutdown...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timed out after 10 seconds, forcing exit")
	}

	// The loop has exited, so the session can be read directly.
	<-loop.Done()
	if opts.summary {
		session.WriteSummary(os.Stdout, sess.Snapshot())
	}

	eventBus.Stop()
	if err := rec.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close recording")
	}

	log.Info().Int("exit_code", exitCode).Msg("gpgnet-mock stopped")
	return exitCode
}
