package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/labdesk/internal/activeuser"
	"github.com/smallbiznis/labdesk/internal/audit"
	"github.com/smallbiznis/labdesk/internal/authorization"
	"github.com/smallbiznis/labdesk/internal/badge"
	"github.com/smallbiznis/labdesk/internal/basket"
	"github.com/smallbiznis/labdesk/internal/calendar"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/exemption"
	"github.com/smallbiznis/labdesk/internal/intake"
	"github.com/smallbiznis/labdesk/internal/lock"
	"github.com/smallbiznis/labdesk/internal/migration"
	"github.com/smallbiznis/labdesk/internal/notification"
	"github.com/smallbiznis/labdesk/internal/observability"
	"github.com/smallbiznis/labdesk/internal/providers"
	"github.com/smallbiznis/labdesk/internal/quiz"
	"github.com/smallbiznis/labdesk/internal/ratelimit"
	"github.com/smallbiznis/labdesk/internal/registration"
	"github.com/smallbiznis/labdesk/internal/scheduler"
	"github.com/smallbiznis/labdesk/internal/seed"
	"github.com/smallbiznis/labdesk/internal/server"
	"github.com/smallbiznis/labdesk/internal/sheet"
	"github.com/smallbiznis/labdesk/internal/storage"
	"github.com/smallbiznis/labdesk/internal/training"
	"github.com/smallbiznis/labdesk/internal/usagelog"
	"github.com/smallbiznis/labdesk/pkg/db"
	"go.uber.org/fx"
)

// labdesk runs the HTTP API and the scheduler in one process.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		storage.Module,
		providers.Module,
		notification.Module,

		// Functional Domains
		sheet.Module,
		exemption.Module,
		usagelog.Module,
		activeuser.Module,
		calendar.Module,
		basket.Module,
		quiz.Module,
		training.Module,
		registration.Module,
		badge.Module,
		intake.Module,

		seed.Module,
		migration.Module,

		audit.Module,
		authorization.Module,
		ratelimit.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
