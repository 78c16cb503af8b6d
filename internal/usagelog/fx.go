package usagelog

import (
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/storage"
	usagelogdomain "github.com/smallbiznis/labdesk/internal/usagelog/domain"
	"github.com/smallbiznis/labdesk/internal/usagelog/service"
	"github.com/smallbiznis/labdesk/internal/usagelog/source"
	"go.uber.org/fx"
)

var Module = fx.Module("usagelog.service",
	fx.Provide(func(cfg config.Config, bucket storage.Bucket) usagelogdomain.Source {
		return source.NewBucket(bucket, cfg.Storage.LogsPrefix)
	}),
	fx.Provide(service.New),
)
