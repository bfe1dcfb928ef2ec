package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/progresspay/internal/config"
)

// Config is the resolved logging, tracing and metrics configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64
}

// LoadConfig layers OTEL_* and LOG_* variables over the application config.
func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:       strings.TrimSpace(cfg.AppName),
		Environment:       strings.TrimSpace(envOr("DEPLOYMENT_ENV", cfg.Environment)),
		Version:           strings.TrimSpace(envOr("SERVICE_VERSION", cfg.AppVersion)),
		LogLevel:          strings.ToLower(envOr("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(envOr("LOG_FORMAT", "json")),
		OtelEnabled:       envBool("OTEL_ENABLED", strings.TrimSpace(cfg.OTLPEndpoint) != ""),
		OtelEndpoint:      strings.TrimSpace(envOr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)),
		OtelProtocol:      strings.ToLower(envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio: envFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
	if out.ServiceName == "" {
		out.ServiceName = "progresspay"
	}
	return out
}

// Debug reports whether verbose logging and stack traces are wanted.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v < 0 || v > 1 {
		return def
	}
	return v
}
