package app

import (
	"context"
	"net/http"
	"time"

	"github.com/Fuonder/zipfilter.git/internal/compress"
	"github.com/Fuonder/zipfilter.git/internal/logger"
	"github.com/Fuonder/zipfilter.git/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Application связывает HTTP-сервер, фильтр сжатия и хранилище срезов
// статистики в один управляемый жизненный цикл.
type Application struct {
	srv           *http.Server
	filter        *compress.Filter
	repo          storage.SnapshotRepository
	storeInterval time.Duration
}

func NewApplication(srv *http.Server,
	filter *compress.Filter,
	repo storage.SnapshotRepository,
	storeInterval time.Duration) *Application {
	return &Application{
		srv:           srv,
		filter:        filter,
		repo:          repo,
		storeInterval: storeInterval,
	}
}

func (a *Application) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Log.Info("Starting HTTP server", zap.String("addr", a.srv.Addr))
		err := a.srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	if a.repo != nil && a.storeInterval > 0 {
		group.Go(func() error {
			ticker := time.NewTicker(a.storeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := a.repo.SaveSnapshot(ctx, a.filter.Stats()); err != nil {
						logger.Log.Error("can not save stats snapshot", zap.Error(err))
					}
				}
			}
		})
	}

	if err := group.Wait(); err != nil {
		logger.Log.Info("Shutting down due to error", zap.Error(err))
		return err
	}
	logger.Log.Info("Shutting down gracefully")
	return nil
}

func (a *Application) Close(ctx context.Context) error {
	var group errgroup.Group

	group.Go(func() error {
		return a.srv.Shutdown(ctx)
	})

	if a.repo != nil {
		group.Go(func() error {
			// финальный срез перед закрытием хранилища
			if err := a.repo.SaveSnapshot(ctx, a.filter.Stats()); err != nil {
				logger.Log.Error("can not save final snapshot", zap.Error(err))
			}
			return a.repo.Close()
		})
	}

	if err := group.Wait(); err != nil {
		logger.Log.Error("Error during shutdown", zap.Error(err))
		return err
	}
	logger.Log.Info("Application shutdown complete")
	return nil
}
