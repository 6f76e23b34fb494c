package observability

import (
	"os"
	"strconv"
	"strings"

	appconfig "github.com/placehub/placehub/internal/config"
)

// Config holds observability settings derived from the app config.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	LogLevel    string
	LogFormat   string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelSamplingRatio    float64
}

func (c Config) Debug() bool {
	return strings.EqualFold(c.Environment, "development")
}

func LoadConfig(cfg appconfig.Config) Config {
	enabled := false
	if v := strings.TrimSpace(os.Getenv("OTEL_ENABLED")); v != "" {
		enabled = v == "1" || strings.EqualFold(v, "true")
	}
	ratio := 1.0
	if v := strings.TrimSpace(os.Getenv("OTEL_SAMPLING_RATIO")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			ratio = parsed
		}
	}
	return Config{
		ServiceName:          cfg.AppName,
		Environment:          cfg.Environment,
		Version:              cfg.AppVersion,
		LogLevel:             strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFormat:            strings.TrimSpace(os.Getenv("LOG_FORMAT")),
		OtelEnabled:          enabled,
		OtelExporterEndpoint: cfg.OTLPEndpoint,
		OtelSamplingRatio:    ratio,
	}
}
