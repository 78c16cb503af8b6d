package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/labdesk/internal/activeuser"
	activeuserdomain "github.com/smallbiznis/labdesk/internal/activeuser/domain"
	"github.com/smallbiznis/labdesk/internal/badge"
	badgedomain "github.com/smallbiznis/labdesk/internal/badge/domain"
	"github.com/smallbiznis/labdesk/internal/basket"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/calendar"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/exemption"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"github.com/smallbiznis/labdesk/internal/lock"
	"github.com/smallbiznis/labdesk/internal/logger"
	"github.com/smallbiznis/labdesk/internal/migration"
	"github.com/smallbiznis/labdesk/internal/notification"
	"github.com/smallbiznis/labdesk/internal/observability"
	"github.com/smallbiznis/labdesk/internal/providers"
	"github.com/smallbiznis/labdesk/internal/quiz"
	"github.com/smallbiznis/labdesk/internal/registration"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	"github.com/smallbiznis/labdesk/internal/seed"
	"github.com/smallbiznis/labdesk/internal/sheet"
	"github.com/smallbiznis/labdesk/internal/storage"
	"github.com/smallbiznis/labdesk/internal/training"
	"github.com/smallbiznis/labdesk/internal/usagelog"
	"github.com/smallbiznis/labdesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// services is what the commands drive. The fields are the domain interfaces so
// tests can hand in an in-memory set.
type services struct {
	fx.In

	Policy       *config.PolicyHolder
	ActiveUsers  activeuserdomain.Service
	Baskets      basketdomain.Service
	Exemptions   exemptiondomain.Service
	Badges       badgedomain.Service
	Registration registrationdomain.Service
	Seeder       *seed.Seeder
}

// withServices runs fn against a started app. Replaced in tests.
var withServices = func(cmd *cobra.Command, fn func(ctx context.Context, svc services) error) error {
	var svc services
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Decorate(consoleLogger),
		fx.Provide(newSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		storage.Module,
		providers.Module,
		notification.Module,

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
		seed.Module,

		fx.Populate(&svc),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx, svc)
}

// runMigrations is separate from withServices because migration.Module runs at construction.
var runMigrations = func(cmd *cobra.Command) error {
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Decorate(consoleLogger),
		fx.Provide(newSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		storage.Module,
		providers.Module,
		notification.Module,
		sheet.Module,
		exemption.Module,
		usagelog.Module,
		activeuser.Module,
		basket.Module,
		seed.Module,
		migration.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}
	// Start and stop so the lifecycle closes the database.
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return app.Stop(ctx)
}

// consoleLogger swaps the JSON service logger for terminal output.
func consoleLogger(_ *zap.Logger) (*zap.Logger, error) {
	return logger.NewConsole(logLevel)
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}
