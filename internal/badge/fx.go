package badge

import (
	"github.com/smallbiznis/labdesk/internal/badge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("badge.service",
	fx.Provide(service.New),
)
