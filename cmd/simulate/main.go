// Command simulate runs a marketplace scenario: producers publish their
// catalogs until every consumer has placed its order, and each order is
// printed as "<consumer> bought <product>" lines.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"marketplace/pkg/config"
	"marketplace/pkg/driver"
	"marketplace/pkg/logger"
	"marketplace/pkg/metrics"
	"marketplace/pkg/order"
	"marketplace/pkg/order/memory"
	pg "marketplace/pkg/order/postgres"
	"marketplace/pkg/otel"
)

func main() {
	var (
		path     = flag.String("config", "scenario.yaml", "scenario file")
		level    = flag.String("log-level", "warn", "log level written to stderr")
		database = flag.String("database-url", os.Getenv("DATABASE_URL"), "record orders in this PostgreSQL database")
		mxAddr   = flag.String("metrics-addr", "", "serve Prometheus metrics on this address while the scenario runs")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lvl, err := logger.ParseLevel(*level)
	if err != nil {
		lvl = logger.LevelWarn
	}
	log := logger.New(os.Stderr, lvl, "marketplace-simulate", otel.GetTraceID)
	defer log.Sync()

	_, shutdown, err := otel.InitTracing(log, otel.Config{
		ServiceName: "marketplace-simulate",
		Host:        os.Getenv("OTEL_HOST"),
		Probability: 1.0,
	})
	if err != nil {
		log.Error(ctx, "init tracing", "error", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())

	scenario, err := config.LoadScenario(*path)
	if err != nil {
		log.Error(ctx, "load scenario", "error", err)
		os.Exit(1)
	}

	var ledger order.Repository = memory.New()
	if *database != "" {
		db, err := sql.Open("postgres", *database)
		if err != nil {
			log.Error(ctx, "db connect", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		repo := pg.New(db)
		if err := repo.Migrate(ctx); err != nil {
			log.Error(ctx, "create table", "error", err)
			os.Exit(1)
		}
		ledger = repo
	}

	mx := metrics.New()
	if *mxAddr != "" {
		srv := &http.Server{Addr: *mxAddr, Handler: mx.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "metrics server", "error", err)
			}
		}()
		defer srv.Close()
	}

	orders, err := driver.RunScenario(ctx, scenario, os.Stdout, ledger,
		driver.WithLogger(log), driver.WithMetrics(mx))
	if err != nil {
		log.Error(ctx, "run scenario", "error", err)
		os.Exit(1)
	}
	sum := mx.Summary()
	log.Info(ctx, "scenario finished",
		"orders", len(orders),
		"published", sum.Published,
		"publish_rejected", sum.PublishRejected,
		"added", sum.Added,
		"add_rejected", sum.AddRejected,
		"removed", sum.Removed)
}
