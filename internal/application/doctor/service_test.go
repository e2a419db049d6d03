package doctor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/compai/internal/domain"
)

type stubConfigProvider struct {
	cfg domain.Config
	err error
}

func (s stubConfigProvider) Load(context.Context) (domain.Config, error) {
	return s.cfg, s.err
}

type stubCatalog struct {
	drift error
}

func (s stubCatalog) Version() string { return "test" }

func (s stubCatalog) Len() int { return 2 }

func (s stubCatalog) VerifyAgainst([]string) error { return s.drift }

type stubBridge struct {
	entryErr error
	names    []string
}

func (s stubBridge) EntryPointAvailable(context.Context) error { return s.entryErr }

func (s stubBridge) RegisteredActions(context.Context) ([]string, error) {
	return s.names, nil
}

type slowEndpoint struct{}

func (slowEndpoint) CheckConnection(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type okEndpoint struct{}

func (okEndpoint) CheckConnection(context.Context) error { return nil }

func validConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Endpoint:            domain.EndpointSettings{BaseURL: "https://example.com/v1", APIKey: "sk-test"},
		Models:              domain.ModelSettings{Chat: "gpt-4o-mini", Temperature: 0.3},
		Bridge:              domain.BridgeSettings{Mode: domain.BridgeModeLocal, ProjectPath: ":memory:"},
	}
}

func statuses(report domain.HealthReport) map[string]domain.HealthStatus {
	out := make(map[string]domain.HealthStatus, len(report.Checks))
	for _, check := range report.Checks {
		out[check.Name] = check.Status
	}
	return out
}

func TestRunHealthyEnvironment(t *testing.T) {
	svc := &Service{
		ConfigProvider: stubConfigProvider{cfg: validConfig()},
		Catalog:        stubCatalog{},
		Bridge:         stubBridge{names: []string{"a", "b"}},
		Endpoint:       okEndpoint{},
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.HasErrors())

	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
		assert.Equal(t, domain.HealthOK, check.Status, check.Name)
	}
	assert.Equal(t, []string{
		"Config file",
		"API key",
		"Action catalog",
		"Host bridge",
		"Catalog consistency",
		"Inference endpoint",
	}, names)
}

func TestRunReportsFailures(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint.APIKey = ""
	cfg.Endpoint.AuthEnvVar = "COMPAI_DOCTOR_TEST_KEY"

	svc := &Service{
		ConfigProvider: stubConfigProvider{cfg: cfg},
		Catalog:        stubCatalog{drift: errors.New("action catalog drift")},
		Bridge:         stubBridge{entryErr: errors.New("host script not loaded")},
		Endpoint:       slowEndpoint{},
		Timeout:        20 * time.Millisecond,
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.HasErrors())

	got := statuses(report)
	assert.Equal(t, domain.HealthWarn, got["API key"])
	assert.Equal(t, domain.HealthError, got["Host bridge"])
	assert.Equal(t, domain.HealthError, got["Catalog consistency"])
	assert.Equal(t, domain.HealthError, got["Inference endpoint"])
}

func TestRunStopsWhenConfigCannotLoad(t *testing.T) {
	svc := &Service{ConfigProvider: stubConfigProvider{err: errors.New("permission denied")}}

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, domain.HealthError, report.Checks[0].Status)
}

func TestRunWarnsWithoutBridge(t *testing.T) {
	svc := &Service{ConfigProvider: stubConfigProvider{cfg: validConfig()}, Catalog: stubCatalog{}}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	got := statuses(report)
	assert.Equal(t, domain.HealthWarn, got["Host bridge"])
	assert.Equal(t, domain.HealthWarn, got["Catalog consistency"])
	assert.Equal(t, domain.HealthWarn, got["Inference endpoint"])
}
