package sheet

import (
	"github.com/smallbiznis/labdesk/internal/sheet/repository"
	"github.com/smallbiznis/labdesk/internal/sheet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sheet.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
