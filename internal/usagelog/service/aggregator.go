package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	usagelogdomain "github.com/smallbiznis/labdesk/internal/usagelog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Source  usagelogdomain.Source
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	source  usagelogdomain.Source
	metrics *metrics.Metrics
}

func New(p Params) usagelogdomain.Service {
	return &Service{
		log:     p.Log.Named("usagelog.service"),
		source:  p.Source,
		metrics: p.Metrics,
	}
}

// Aggregate scans every export in the given months and keeps the latest record per user.
// A missing month or log folder aborts the whole run.
func (s *Service) Aggregate(ctx context.Context, months []string) (usagelogdomain.Result, error) {
	result := usagelogdomain.Result{Latest: usagelogdomain.Latest{}}

	for _, month := range months {
		files, err := s.source.ListFiles(ctx, month)
		if err != nil {
			return usagelogdomain.Result{}, fmt.Errorf("scan month %s: %w", month, err)
		}
		result.Stats.Months++

		for _, file := range files {
			records, skipped := ParseExport(file.Data)
			result.Stats.Files++
			result.Stats.Rows += len(records)
			result.Stats.Skipped += skipped
			if skipped > 0 {
				s.log.Warn("usage export has malformed rows",
					zap.String("month", month),
					zap.String("file", file.Name),
					zap.Int("skipped", skipped),
				)
			}
			for _, rec := range records {
				Merge(result.Latest, rec)
			}
		}
	}

	s.metrics.RecordUsageRowsSkipped(ctx, result.Stats.Skipped)
	s.log.Info("usage logs aggregated",
		zap.Int("months", result.Stats.Months),
		zap.Int("files", result.Stats.Files),
		zap.Int("rows", result.Stats.Rows),
		zap.Int("users", len(result.Latest)),
		zap.Int("skipped", result.Stats.Skipped),
	)
	return result, nil
}

// Merge stores rec when it is newer than the user's current record.
func Merge(latest usagelogdomain.Latest, rec usagelogdomain.UsageRecord) {
	current, ok := latest[rec.UserName]
	if !ok || rec.Stamp() > current.Stamp() {
		latest[rec.UserName] = rec
	}
}

// ParseExport reads one tab-delimited export. The first three lines and the last line
// are header and footer. Blank lines are ignored; lines with too few fields or no user
// are counted as skipped.
func ParseExport(data []byte) ([]usagelogdomain.UsageRecord, int) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) <= usagelogdomain.HeaderLines+usagelogdomain.FooterLines {
		return nil, 0
	}
	body := lines[usagelogdomain.HeaderLines : len(lines)-usagelogdomain.FooterLines]

	records := make([]usagelogdomain.UsageRecord, 0, len(body))
	skipped := 0
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < usagelogdomain.FieldCount {
			skipped++
			continue
		}
		rec := usagelogdomain.UsageRecord{
			Date:       strings.TrimSpace(fields[0]),
			Time:       strings.TrimSpace(fields[1]),
			Group:      strings.TrimSpace(fields[2]),
			UserName:   strings.TrimSpace(fields[3]),
			Tool:       strings.TrimSpace(fields[4]),
			UsageValue: strings.TrimSpace(fields[5]),
		}
		if rec.UserName == "" {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}
