package activeuser

import (
	"github.com/smallbiznis/labdesk/internal/activeuser/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activeuser.service",
	fx.Provide(service.New),
)
