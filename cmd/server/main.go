package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fuonder/zipfilter.git/internal/app"
	"github.com/Fuonder/zipfilter.git/internal/compress"
	"github.com/Fuonder/zipfilter.git/internal/logger"
	"github.com/Fuonder/zipfilter.git/internal/server"
	"github.com/Fuonder/zipfilter.git/internal/storage"
	"github.com/Fuonder/zipfilter.git/internal/storage/database"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"net/http"
)

func main() {
	if err := parseFlags(); err != nil {
		panic(err)
	}
	if err := logger.Initialize(CliOpt.LogLevel); err != nil {
		panic(err)
	}
	logger.Log.Info("Starting zipfilter server")
	logger.Log.Debug("Flags parsed", zap.String("flags", CliOpt.String()))

	if err := run(&CliOpt); err != nil {
		logger.Log.Fatal("error during run", zap.Error(err))
	}
	logger.Log.Info("Server finished")
}

func run(opt *CliOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	filter, err := compress.NewFilter(compress.Config{
		Threshold:                opt.Threshold,
		Level:                    opt.Level,
		StatsEnabled:             opt.StatsEnabled,
		IncludePathPatterns:      opt.IncludePaths,
		ExcludePathPatterns:      opt.ExcludePaths,
		IncludeUserAgentPatterns: opt.IncludeUserAgents,
		ExcludeUserAgentPatterns: opt.ExcludeUserAgents,
		NoVaryUserAgentPatterns:  opt.NoVaryUserAgents,
		IncludeContentTypes:      opt.IncludeContentTypes,
		ExcludeContentTypes:      opt.ExcludeContentTypes,
	}, nil)
	if err != nil {
		return err
	}

	var (
		repo   storage.SnapshotRepository
		health storage.HealthChecker
	)
	switch {
	case opt.DatabaseDSN != "":
		db, err := database.NewPSQLStorage(ctx, opt.DatabaseDSN)
		if err != nil {
			return err
		}
		repo, health = db, db
	case opt.FileStoragePath != "":
		js, err := storage.NewJSONStorage(opt.FileStoragePath)
		if err != nil {
			return err
		}
		repo, health = js, js
	}

	handler := server.NewHandler(filter, health)
	srv := &http.Server{
		Addr:    opt.NetAddr.String(),
		Handler: zipRouter(handler, filter),
	}
	application := app.NewApplication(srv, filter, repo, opt.StoreInterval)

	g := new(errgroup.Group)

	g.Go(func() error {
		err := application.Run(ctx)
		cancel()
		return err
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Log.Info("got signal", zap.String("signal", sig.String()))
		case <-ctx.Done():
			return nil
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return application.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Log.Info("server exited gracefully")
	return nil
}

func zipRouter(h *server.Handler, filter *compress.Filter) chi.Router {
	router := chi.NewRouter()

	router.Use(logger.WithLogging)
	router.Use(filter.Handler)
	router.Get("/", h.RootHandler)
	router.Post("/echo", h.EchoHandler)
	router.Post("/report", h.ReportHandler)
	router.Get("/stats", h.StatsHandler)
	router.Get("/ping", h.PingHandler)
	return router
}
