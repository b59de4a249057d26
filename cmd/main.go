package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"nfesorter/internal/api"
	"nfesorter/internal/config"
	fileutil "nfesorter/internal/file"
	"nfesorter/internal/job"
)

func main() {
	configPath := pflag.String("config", "config.yml", "path to the YAML config file")
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	} else {
		zerolog.SetGlobalLevel(level)
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	jobManager, err := buildJobManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open job store")
	}

	router := setupRouter(cfg)
	api.NewAPI(jobManager, cfg.MaxUploadBytes).RegisterRoutes(router)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	jobManager.SetBaseContext(baseCtx)
	if err := jobManager.LoadFromDisk(); err != nil {
		log.Warn().Err(err).Msg("restore jobs from store")
	}

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 30 * time.Second
	)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Str("store", cfg.Store.Driver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()

	gracefulShutdown(srv, baseCancel, jobManager, shutdownTimeout)
}

func setupRouter(cfg config.Config) *gin.Engine {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	return r
}

func buildJobManager(cfg config.Config) (*job.Manager, error) {
	var store job.Store
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		sqlStore, err := job.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = sqlStore
	default:
		store = job.NewFileStore(cfg.DataDir)
	}
	return job.NewManagerWithOptions(job.Options{
		DataDir:           cfg.DataDir,
		UploadExtensions:  cfg.UploadExtensions,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		Store:             store,
	}), nil
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, jm *job.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	if !jm.WaitAll(ctx) {
		log.Warn().Msg("running jobs did not finish before timeout")
	}
	if err := jm.Close(); err != nil {
		log.Warn().Err(err).Msg("close job store")
	}
	log.Info().Msg("server exited cleanly")
}
