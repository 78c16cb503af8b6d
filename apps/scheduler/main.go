package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/labdesk/internal/activeuser"
	"github.com/smallbiznis/labdesk/internal/audit"
	"github.com/smallbiznis/labdesk/internal/basket"
	"github.com/smallbiznis/labdesk/internal/calendar"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/exemption"
	"github.com/smallbiznis/labdesk/internal/lock"
	"github.com/smallbiznis/labdesk/internal/notification"
	"github.com/smallbiznis/labdesk/internal/observability"
	"github.com/smallbiznis/labdesk/internal/providers"
	"github.com/smallbiznis/labdesk/internal/quiz"
	"github.com/smallbiznis/labdesk/internal/scheduler"
	"github.com/smallbiznis/labdesk/internal/sheet"
	"github.com/smallbiznis/labdesk/internal/storage"
	"github.com/smallbiznis/labdesk/internal/training"
	"github.com/smallbiznis/labdesk/internal/usagelog"
	"github.com/smallbiznis/labdesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		storage.Module,
		providers.Module,
		notification.Module,

		// Domain services required by scheduler
		sheet.Module,
		exemption.Module,
		usagelog.Module,
		activeuser.Module,
		calendar.Module,
		basket.Module,
		quiz.Module,
		training.Module,
		audit.Module,

		// No server module!
		fx.Decorate(forceScheduler),
		scheduler.Module,
	)
	app.Run()
}

// forceScheduler enables the loop regardless of SCHEDULER_ENABLED; running it is this binary's only job.
func forceScheduler(cfg config.Config) config.Config {
	cfg.Scheduler.Enabled = true
	return cfg
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
