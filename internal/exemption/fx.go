package exemption

import (
	"context"

	"github.com/smallbiznis/labdesk/internal/config"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"github.com/smallbiznis/labdesk/internal/exemption/repository"
	"github.com/smallbiznis/labdesk/internal/exemption/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("exemption.service",
	fx.Provide(provideFileStore),
	fx.Provide(func(store *repository.FileStore) exemptiondomain.Repository { return store }),
	fx.Provide(service.New),
	fx.Invoke(watchFile),
)

func provideFileStore(cfg config.Config, log *zap.Logger) *repository.FileStore {
	return repository.NewFileStore(cfg.ExemptionsFile, log.Named("exemption.file"))
}

func watchFile(lc fx.Lifecycle, store *repository.FileStore, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := store.Watch(ctx); err != nil {
					log.Warn("exemption file watch stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}
