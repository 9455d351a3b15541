package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/atcsim/internal/api"
	"github.com/yegors/atcsim/internal/config"
	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/internal/roster"
	"github.com/yegors/atcsim/internal/sim"
	"github.com/yegors/atcsim/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration file (defaults when empty)")
	flightsPath := flag.String("flights", "", "path to a flight list: one \"ID ORIGIN DESTINATION\" per line")
	restorePath := flag.String("restore", "", "roster snapshot to restore before starting")
	snapshotPath := flag.String("snapshot", "", "write a roster snapshot here on exit")
	flag.Parse()

	if err := run(*configPath, *flightsPath, *restorePath, *snapshotPath); err != nil {
		fmt.Fprintf(os.Stderr, "atcsim: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, flightsPath, restorePath, snapshotPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	log, err := logger.New(cfg.Logging.Logger())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var hub *api.Hub
	opts := sim.Options{Registerer: reg}
	if cfg.Server.Enabled {
		hub = api.NewHub(cfg.Server.CORSAllowedOrigins, log)
		opts.Sinks = []message.Sink{hub}
	}

	s, err := sim.New(cfg, opts, log)
	if err != nil {
		return err
	}

	if restorePath != "" {
		snap, err := roster.LoadFile(restorePath)
		if err != nil {
			_ = s.Close()
			return err
		}
		if _, err := s.Restore(snap); err != nil {
			log.Warn("Some aircraft could not be restored", logger.Error(err))
		}
	}

	if flightsPath != "" {
		flights, skipped, err := roster.LoadFlights(flightsPath)
		if err != nil {
			_ = s.Close()
			return err
		}
		for _, sk := range skipped {
			log.Warn("Skipping flight line",
				logger.String("file", flightsPath),
				logger.Int("line", sk.Line),
				logger.String("text", sk.Text),
				logger.String("reason", sk.Reason))
		}
		created := s.LoadFlights(flights)
		log.Info("Flights loaded",
			logger.Int("created", created),
			logger.Int("listed", len(flights)),
			logger.Int("skipped", len(skipped)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(gctx) })
	if cfg.Server.Enabled {
		router := api.NewRouter(s, hub, reg, cfg.Server, log)
		server := api.NewServer(cfg.Server, router.Routes(), log)
		g.Go(func() error {
			defer hub.Close()
			return server.Run(gctx)
		})
	}

	err = g.Wait()
	log.Info("Shutting down", logger.Duration("simulated", s.Context().Elapsed()))

	if snapshotPath != "" {
		if serr := roster.SaveFile(snapshotPath, s.Snapshot()); serr != nil {
			log.Error("Failed to write roster snapshot", logger.Error(serr))
		} else {
			log.Info("Roster snapshot written", logger.String("path", snapshotPath))
		}
	}
	return err
}
