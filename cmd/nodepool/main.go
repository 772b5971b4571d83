package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guileen/nodepool/api"
	"github.com/guileen/nodepool/config"
	"github.com/guileen/nodepool/driver"
	"github.com/guileen/nodepool/logger"
	"github.com/guileen/nodepool/metrics"
	"github.com/guileen/nodepool/registry"
	"github.com/guileen/nodepool/scheduler"
)

func main() {
	configPath := flag.String("config", "db.properties", "node configuration file (.properties, .yaml, .toml or .json)")
	addr := flag.String("addr", ":8080", "admin HTTP listen address")
	flag.Parse()

	if p := os.Getenv("PORT"); p != "" {
		*addr = ":" + p
	}

	startTime := time.Now()
	logger.Info("Starting nodepool", "config", *configPath)

	src, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", logger.ErrorField(err))
		log.Fatalf("failed to load configuration: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewPrometheusCollector(promRegistry)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	sched := scheduler.New()
	defer sched.Stop()

	reg, err := registry.Build(context.Background(), src,
		registry.WithDrivers(driver.NewRegistry()),
		registry.WithScheduler(sched),
		registry.WithCollector(collector))
	if err != nil {
		log.Fatalf("failed to build pools: %v", err)
	}
	defer reg.Destroy()

	for node, cause := range reg.Skipped() {
		logger.Warn("Node unavailable", logger.Node(node), logger.ErrorField(cause))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if os.Getenv("DISABLE_PROFILING") == "" {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
		r.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))
	}
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry}))
	api.NewAdminHandler(reg).RegisterRoutes(r)

	server := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Admin server listening", "addr", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin server failed", logger.ErrorField(err), "addr", *addr)
			log.Fatalf("admin server failed: %v", err)
		}
	}()
	logger.Info("nodepool ready", "nodes", reg.Nodes(), "init_duration", time.Since(startTime).String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Admin server shutdown failed", logger.ErrorField(err))
	}
}
