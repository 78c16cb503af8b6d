package observability

import (
	"strings"
	"time"

	"github.com/smallbiznis/labdesk/internal/config"
)

// Config is the observability view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel    string
	LogFormat   string
	SQLLogLevel string
	SlowQuery   time.Duration

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "labdesk"
	}
	protocol := strings.TrimSpace(obs.OTLPProtocol)
	if protocol == "" {
		protocol = "grpc"
	}
	ratio := obs.SamplingRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             defaultString(obs.LogLevel, "info"),
		LogFormat:            defaultString(obs.LogFormat, "json"),
		SQLLogLevel:          defaultString(obs.SQLLogLevel, "warn"),
		SlowQuery:            obs.SlowQuery,
		OtelEnabled:          obs.Tracing && strings.TrimSpace(cfg.OTLPEndpoint) != "",
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug reports whether verbose request logging is on.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func defaultString(value, def string) string {
	if trimmed := strings.ToLower(strings.TrimSpace(value)); trimmed != "" {
		return trimmed
	}
	return def
}
