package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/custodian-sh/custodian/internal/api"
	"github.com/custodian-sh/custodian/internal/audit"
	"github.com/custodian-sh/custodian/internal/auth"
	"github.com/custodian-sh/custodian/internal/config"
	"github.com/custodian-sh/custodian/internal/logging"
	"github.com/custodian-sh/custodian/internal/metrics"
	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/internal/ratelimit"
	"github.com/custodian-sh/custodian/internal/shutdown"
	"github.com/custodian-sh/custodian/internal/store"
	"github.com/custodian-sh/custodian/internal/tlsutil"
	"github.com/custodian-sh/custodian/internal/tracing"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	generateCert := flag.Bool("generate-cert", false, "Generate a self-signed certificate and exit")
	certHosts := flag.String("cert-hosts", "", "Comma-separated SANs for the generated certificate")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("custodiand %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if *generateCert {
		certFile, keyFile := certPaths(cfg.Server.TLS)
		if err := tlsutil.GenerateSelfSignedCert(certFile, keyFile, "custodiand", splitHosts(*certHosts)...); err != nil {
			logger.Fatal("Failed to generate certificate", map[string]interface{}{"error": err.Error()})
		}
		logger.Info("Certificate generated", map[string]interface{}{
			"cert": certFile,
			"key":  keyFile,
		})
		return
	}

	logger.Info("Starting custodian ownership registry", map[string]interface{}{
		"version": version,
		"store":   cfg.Store.Type,
		"addr":    cfg.Server.ListenAddr,
	})

	dataStore, err := store.NewStore(storeConfig(cfg.Store))
	if err != nil {
		logger.Fatal("Failed to open store", map[string]interface{}{"error": err.Error()})
	}

	mgr := shutdown.New(config.Duration(cfg.Server.ShutdownTimeout, 15*time.Second), logger)
	mgr.Register("store", shutdown.CloseResource(dataStore, "store"))

	provider, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "custodiand",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracing", map[string]interface{}{"error": err.Error()})
	}
	mgr.Register("tracing", provider.Shutdown)
	if cfg.Tracing.Enabled {
		logger.Info("Tracing enabled", map[string]interface{}{"endpoint": cfg.Tracing.OTLPEndpoint})
	}

	collector := metrics.New()

	// Background workers stop when this context is canceled, which happens
	// after the listeners drain and before the store closes.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Register("background workers", func(context.Context) error {
		cancel()
		return nil
	})

	if cfg.Metrics.Enabled {
		collector.StartSystemSampler(ctx, config.Duration(cfg.Metrics.SampleInterval, 15*time.Second))
	}

	authenticator := auth.NewAuthenticator(dataStore, bootstrapKeys(cfg.Auth))
	if len(cfg.Auth.BootstrapKeys) == 0 {
		logger.Warn("No bootstrap keys configured; only stored principals can authenticate")
	}

	handler := api.NewHandler(dataStore, logger, api.Options{
		Version:        version,
		StoreType:      cfg.Store.Type,
		EmergencyOwner: cfg.Ownership.EmergencyOwner,
	})
	handler.SetTransitionRecorder(collector)
	handler.SetKeyInvalidator(authenticator)
	if !cfg.Ownership.EmergencyOwner {
		logger.Info("Emergency owner capability disabled")
	}

	router := mux.NewRouter()
	router.Use(tracing.HTTPMiddleware(provider))
	router.Use(collector.Middleware)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		router.Use(limiter.Middleware(ratelimit.BearerKeyFunc))
	}
	router.Use(authenticator.Middleware)

	handler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", collector.Handler()).Methods("GET")

		metricsSrv := &http.Server{
			Addr:         cfg.Metrics.ListenAddr,
			Handler:      metricsRouter,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Metrics server listening", map[string]interface{}{"addr": cfg.Metrics.ListenAddr})
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", map[string]interface{}{"error": err.Error()})
			}
		}()
		mgr.Register("metrics server", shutdown.StopHTTPServer(metricsSrv, "metrics"))
	}

	pruner := audit.NewPruner(dataStore, logger, collector,
		time.Duration(cfg.Audit.RetentionDays)*24*time.Hour,
		config.Duration(cfg.Audit.PruneInterval, time.Hour))
	go pruner.Run(ctx)

	go maintenanceLoop(ctx, logger, limiter, dataStore, collector, cfg.Logging.MaxSizeMB*1024*1024)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 10*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 10*time.Second),
		IdleTimeout:  config.Duration(cfg.Server.IdleTimeout, 60*time.Second),
	}

	useTLS := cfg.Server.TLS.Enabled
	if useTLS {
		certFile, keyFile := certPaths(cfg.Server.TLS)
		if cfg.Server.TLS.AutoGenerate {
			if _, err := os.Stat(certFile); os.IsNotExist(err) {
				logger.Info("Certificate not found, generating self-signed pair", map[string]interface{}{"cert": certFile})
				if err := tlsutil.GenerateSelfSignedCert(certFile, keyFile, "custodiand"); err != nil {
					logger.Fatal("Failed to generate certificate", map[string]interface{}{"error": err.Error()})
				}
			}
		}

		tlsConfig, err := tlsutil.LoadServerConfig(certFile, keyFile, cfg.Server.TLS.CAFile, cfg.Server.TLS.RequireClientCert)
		if err != nil {
			logger.Fatal("Failed to load TLS config", map[string]interface{}{"error": err.Error()})
		}
		srv.TLSConfig = tlsConfig
		if cfg.Server.TLS.RequireClientCert {
			logger.Info("mTLS enabled, client certificates required")
		}
	} else {
		logger.Warn("TLS disabled; run behind a TLS-terminating proxy in production")
	}

	go func() {
		logger.Info("API server listening", map[string]interface{}{
			"addr": cfg.Server.ListenAddr,
			"tls":  useTLS,
		})

		var err error
		if useTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	mgr.Register("api server", shutdown.StopHTTPServer(srv, "api"))

	mgr.Wait()
	mgr.Shutdown()
}

func buildLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.Level)
	jsonFormat := cfg.Format == "json"
	if cfg.File != "" {
		return logging.NewFileLogger(cfg.File, level, jsonFormat)
	}
	return logging.NewLogger(level, jsonFormat), nil
}

func storeConfig(cfg config.StoreConfig) store.Config {
	return store.Config{
		Type:            cfg.Type,
		DSN:             cfg.DSN,
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: config.Duration(cfg.ConnMaxLifetime, 0),
		ConnMaxIdleTime: config.Duration(cfg.ConnMaxIdleTime, 0),
	}
}

func bootstrapKeys(cfg config.AuthConfig) []auth.BootstrapKey {
	keys := make([]auth.BootstrapKey, 0, len(cfg.BootstrapKeys))
	for _, bk := range cfg.BootstrapKeys {
		keys = append(keys, auth.BootstrapKey{
			ID:   bk.ID,
			Role: models.Role(bk.Role),
			Key:  bk.Key,
		})
	}
	return keys
}

func certPaths(cfg config.TLSConfig) (string, string) {
	certFile := cfg.CertFile
	if certFile == "" {
		certFile = "certs/custodiand.crt"
	}
	keyFile := cfg.KeyFile
	if keyFile == "" {
		keyFile = "certs/custodiand.key"
	}
	return certFile, keyFile
}

func splitHosts(raw string) []string {
	var hosts []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// maintenanceLoop owns the periodic chores that keep long-running state
// bounded: resource gauge refresh, rate limit bucket cleanup, log rotation.
func maintenanceLoop(ctx context.Context, logger *logging.Logger, limiter *ratelimit.Limiter, s store.Store, collector *metrics.Metrics, maxLogSize int64) {
	gauges := time.NewTicker(30 * time.Second)
	cleanup := time.NewTicker(10 * time.Minute)
	rotate := time.NewTicker(time.Hour)
	defer gauges.Stop()
	defer cleanup.Stop()
	defer rotate.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gauges.C:
			counts, err := s.CountResourcesByKind(ctx)
			if err != nil {
				logger.Warn("Failed to refresh resource gauges", map[string]interface{}{"error": err.Error()})
				continue
			}
			collector.SetResourceCounts(counts)
		case <-cleanup.C:
			if limiter == nil {
				continue
			}
			if removed := limiter.CleanupStale(time.Hour); removed > 0 {
				logger.Debug("Dropped stale rate limit buckets", map[string]interface{}{"removed": removed})
			}
		case <-rotate.C:
			if maxLogSize <= 0 {
				continue
			}
			if err := logger.RotateIfNeeded(maxLogSize); err != nil {
				logger.Warn("Log rotation failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
