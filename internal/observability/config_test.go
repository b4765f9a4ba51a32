package observability

import (
	"testing"

	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigNormalizesObservabilitySettings(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:  "production",
		AppVersion:   " 1.2.0 ",
		OTLPEndpoint: "collector:4318",
		Observability: config.ObservabilityConfig{
			OtelProtocol:  "http/protobuf",
			SamplingRatio: 4,
		},
	})

	assert.Equal(t, "workdesk", cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "http/protobuf", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestDebugFollowsLevelOrEnvironment(t *testing.T) {
	assert.True(t, Config{LogLevel: "debug", Environment: "production"}.Debug())
	assert.True(t, Config{LogLevel: "info", Environment: "Local"}.Debug())
	assert.False(t, Config{LogLevel: "warn", Environment: "staging"}.Debug())
}
