package migration

import (
	"context"

	"github.com/smallbiznis/labdesk/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates the schema and seeds the workbook before the app starts serving.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, s *seed.Seeder, log *zap.Logger) error {
		if err := Run(conn); err != nil {
			return err
		}
		report, err := s.Run(context.Background())
		if err != nil {
			return err
		}
		log.Info("workbook ready",
			zap.Int("sheets_created", len(report.Created)),
			zap.Int("baskets_seeded", report.Baskets),
		)
		return nil
	}),
)
