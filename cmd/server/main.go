package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kevinxiao27/consistent/cmap"
	"github.com/kevinxiao27/consistent/config"
	"github.com/kevinxiao27/consistent/logging"
	"github.com/kevinxiao27/consistent/referee"
	"github.com/kevinxiao27/consistent/relay"
	"github.com/kevinxiao27/consistent/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func persister[T any](s *store.Store) relay.Persister[T] {
	return func(collection string, resolved cmap.Map[T], local cmap.Obligations) error {
		return store.Persist(s, collection, resolved, local)
	}
}

func open[T any](s *store.Store, name string, ignore []string, logger *slog.Logger, metrics *relay.Metrics, opts ...relay.Option) (*relay.Collection[T], error) {
	initial, err := store.Load[T](s, name)
	if err != nil {
		return nil, err
	}
	logger.Info("collection loaded", "collection", name, "records", len(initial.Values), "deleted", initial.Deleted.Len())
	return relay.NewCollection(name, ignore, initial, persister[T](s), logger, metrics, opts...), nil
}

func main() {
	configPath := flag.String("config", "", "path to relay TOML config")
	flag.Parse()

	logger := logging.Init("relay")

	conf, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	db, err := store.Open(conf.Store.Path)
	if err != nil {
		logger.Error("store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := relay.NewMetrics(reg)

	incidents, err := open[referee.Incident](db, conf.Collections.Incidents, referee.IncidentIdentity, logger, metrics)
	if err != nil {
		logger.Error("load incidents", "err", err)
		os.Exit(1)
	}
	scratchpads, err := open[referee.Scratchpad](db, conf.Collections.Scratchpads, referee.ScratchpadIdentity, logger, metrics, relay.WithScratchpadUpdates())
	if err != nil {
		logger.Error("load scratchpads", "err", err)
		os.Exit(1)
	}

	hub := relay.NewHub(logger, metrics, incidents, scratchpads)
	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           hub.Router(conf.MetricsPath, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("relay listening", "addr", conf.Listen, "ws", "/ws", "metrics", conf.MetricsPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		logger.Warn("shutdown", "err", err)
	}
	logger.Info("relay stopped")
}
