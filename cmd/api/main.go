package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"marketplace/pkg/config"
	"marketplace/pkg/logger"
	"marketplace/pkg/market"
	"marketplace/pkg/metrics"
	"marketplace/pkg/order"
	"marketplace/pkg/order/memory"
	pg "marketplace/pkg/order/postgres"
	"marketplace/pkg/otel"
	"marketplace/pkg/product"
)

var (
	redisClient *redis.Client
	mkt         *market.Marketplace[product.Product]
	ledger      order.Repository
	sessions    sessionStore
	sessionTTL  = time.Hour
	guards      = newCartGuards()
	mx          *metrics.Metrics
	log         *logger.Logger
	tracer      trace.Tracer
)

// @title Marketplace API
// @version 1.0
// @description Producers publish products into bounded queues; consumers move them through carts into orders.
// @host localhost:8443
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadService()
	if err != nil {
		logger.New(os.Stderr, logger.LevelError, "marketplace", nil).Error(ctx, "load config", "error", err)
		os.Exit(1)
	}
	lvl, _ := logger.ParseLevel(cfg.LogLevel)
	log = logger.New(os.Stdout, lvl, "marketplace", otel.GetTraceID)
	defer log.Sync()

	tp, shutdown, err := otel.InitTracing(log, otel.Config{ServiceName: "marketplace", Host: cfg.OTELHost, Probability: cfg.TraceProbability})
	if err != nil {
		log.Error(ctx, "init tracing", "error", err)
		return
	}
	defer shutdown(context.Background())
	tracer = tp.Tracer("marketplace")

	mkt, err = market.New[product.Product](cfg.QueueSizePerProducer)
	if err != nil {
		log.Error(ctx, "create marketplace", "error", err)
		os.Exit(1)
	}
	mx = metrics.New()

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
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
	} else {
		ledger = memory.New()
	}

	redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	sessionTTL = cfg.SessionTTL
	sessions = &redisSessions{rdb: redisClient, ttl: sessionTTL}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info(ctx, "listening", "addr", cfg.HTTPAddr, "capacity", mkt.Capacity())
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server closed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "shutdown", "error", err)
	}
	log.Info(shutdownCtx, "server stopped")
}

func newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(traceMiddleware)
	r.HandleFunc("/login", loginHandler).Methods(http.MethodPost)

	producers := r.PathPrefix("/producers").Subrouter()
	producers.HandleFunc("", registerProducerHandler).Methods(http.MethodPost)
	producers.HandleFunc("/{id:[0-9]+}", getProducerHandler).Methods(http.MethodGet)
	producers.HandleFunc("/{id:[0-9]+}/products", publishHandler).Methods(http.MethodPost)

	cart := r.PathPrefix("/cart").Subrouter()
	cart.Use(authMiddleware, cartGuardMiddleware)
	cart.HandleFunc("", getCartHandler).Methods(http.MethodGet)
	cart.HandleFunc("/items", addItemHandler).Methods(http.MethodPost)
	cart.HandleFunc("/items", removeItemHandler).Methods(http.MethodDelete)
	cart.HandleFunc("/order", placeOrderHandler).Methods(http.MethodPost)

	orders := r.PathPrefix("/orders").Subrouter()
	orders.HandleFunc("", listOrdersHandler).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", getOrderHandler).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", deleteOrderHandler).Methods(http.MethodDelete)

	r.Handle("/metrics", mx.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.InjectTracing(r.Context(), tracer)
		ctx, span := otel.AddSpan(ctx, r.Method+" "+r.URL.Path)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
