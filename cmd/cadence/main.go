package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AaronLay10/Cadence/internal/api"
	"github.com/AaronLay10/Cadence/internal/backend"
	"github.com/AaronLay10/Cadence/internal/config"
	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/logging"
	"github.com/AaronLay10/Cadence/internal/mqtt"
	"github.com/AaronLay10/Cadence/internal/nodes"
	"github.com/AaronLay10/Cadence/internal/playhead"
	"github.com/AaronLay10/Cadence/internal/storage/postgres"
	"github.com/AaronLay10/Cadence/internal/studio"
	"github.com/AaronLay10/Cadence/internal/version"
)

func main() {
	configPath := flag.String("config", "studio.yaml", "path to studio.yaml")
	graphPath := flag.String("graph", "", "graph file to load (overrides graph.path)")
	flag.Parse()

	cfg, err := config.LoadStudioConfig(*configPath)
	if err != nil {
		slog.Error("failed to load studio config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *graphPath != "" {
		p, err := config.ExpandPath(*graphPath)
		if err != nil {
			slog.Error("invalid graph path", "path", *graphPath, "error", err)
			os.Exit(1)
		}
		cfg.Graph.Path = p
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("cadence exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.StudioConfig, log *slog.Logger) error {
	secrets, err := config.LoadSecrets()
	if err != nil {
		return err
	}
	studioID := cfg.StudioID()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(studioID)
		if err != nil {
			log.Warn("postgres unavailable, events stay in memory", "error", err)
			api.SetPostgresState(false, false)
		} else {
			events.SetPostgresClient(pg)
			api.SetPostgresState(true, false)
			defer pg.Close()
		}
	} else {
		api.SetPostgresState(false, true)
	}

	env := &nodes.Env{
		SampleRate:      cfg.SampleRate(),
		BackendInterval: cfg.Backend.Interval,
		ResolvePath:     config.ExpandPath,
		Screens:         nodes.NewScreens(),
	}
	if cfg.Backend.URL != "" {
		env.Backend = backend.NewClient(cfg.Backend.URL, secrets.BackendToken, cfg.BackendTimeout())
	}

	var (
		broker *mqtt.Client
		motion playhead.MotionPlayer
	)
	if cfg.MQTT.Enabled {
		broker = mqtt.NewClient(cfg.MQTT.URL, "cadence-"+studioID, log)
		api.SetMQTTState(broker.StartWithRetry(), false)
		motion = mqtt.NewMotionPublisher(broker, cfg.TopicPrefix(), log)
		defer broker.Disconnect()
	} else {
		api.SetMQTTState(false, true)
	}

	opts := studio.Options{
		Registry:  nodes.Default(env),
		Blocks:    cfg.Timeline.Blocks,
		Motion:    motion,
		GraphPath: cfg.Graph.Path,
		Logger:    log,
	}
	if pg != nil {
		opts.Store = pg
	}
	s, err := studio.New(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Graph.Path != "" {
		if err := s.LoadFile(cfg.Graph.Path); err != nil {
			return err
		}
	}

	if pg != nil {
		restored, rows, err := studio.RestorePlayhead(pg, studio.DefaultRestoreLimit)
		if err != nil {
			log.Warn("playhead restore failed", "error", err)
		} else if err := s.ApplyRestored(restored); err != nil {
			log.Warn("restored playhead rejected", "error", err)
		} else {
			studio.EmitRestored(restored, rows, studioID)
		}
	}

	if broker != nil {
		ctrl := mqtt.NewControlSubscriber(broker, cfg.TopicPrefix(), s, log)
		if err := ctrl.Start(); err != nil {
			log.Warn("control subscribe failed", "filter", ctrl.Filter(), "error", err)
		}
		go watchBroker(ctx, broker)
	}

	api.InitAuth(secrets)
	if err := api.InitTLS(); err != nil {
		return err
	}
	name := cfg.Studio.Name
	if name == "" {
		name = studioID
	}
	api.InitMetrics(name, s)
	api.SetController(s)

	srv, err := api.NewServer(cfg.UIPort())
	if err != nil {
		return err
	}
	api.Start(srv, log)
	go api.NewAlerter(log).Run(ctx, 5*time.Second)

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "cadence starting", map[string]interface{}{
		"service":   "cadence",
		"version":   version.Version,
		"studio_id": studioID,
		"hostname":  hostname,
		"pid":       os.Getpid(),
		"fps":       cfg.FPS(),
	})
	api.SetStudioReady(true)

	err = s.Run(ctx, cfg.FPS())

	api.SetStudioReady(false)
	events.Emit("info", "system.shutdown", "cadence stopping", map[string]interface{}{
		"frames": s.Frames(),
	})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("api shutdown", "error", serr)
	}
	events.CloseAllSubscribers()
	if !events.StopPersistence(5 * time.Second) {
		log.Warn("events still queued for postgres at shutdown")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchBroker mirrors the broker connection into readiness.
func watchBroker(ctx context.Context, b *mqtt.Client) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			api.SetMQTTState(b.IsConnected(), false)
		}
	}
}
