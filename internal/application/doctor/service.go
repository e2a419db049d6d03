package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	appconfig "github.com/doeshing/compai/internal/application/config"
	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/ports"
)

// BridgeProbe is the part of the bridge transport diagnostics need.
type BridgeProbe interface {
	EntryPointAvailable(ctx context.Context) error
	RegisteredActions(ctx context.Context) ([]string, error)
}

// Catalog is the part of the whitelist diagnostics need.
type Catalog interface {
	Version() string
	Len() int
	VerifyAgainst(hostNames []string) error
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Catalog        Catalog
	Bridge         BridgeProbe
	Endpoint       ports.ConnectivityChecker
	Timeout        time.Duration
}

type indexedCheck struct {
	order int
	check domain.HealthCheck
}

// Run executes checks and returns a report. Checks after the config check run concurrently.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format %s, bridge mode %s", cfg.ConfigFormatVersion, cfg.GetBridgeMode())))
	}
	checks = append(checks, apiKeyCheck(cfg))

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultDoctorTimeout
	}

	probes := []func(context.Context) domain.HealthCheck{
		s.catalogCheck,
		s.entryPointCheck,
		s.consistencyCheck,
		s.endpointCheck,
	}
	p := pool.NewWithResults[indexedCheck]().WithMaxGoroutines(len(probes))
	for i, probe := range probes {
		i, probe := i, probe
		p.Go(func() indexedCheck {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return indexedCheck{order: i, check: probe(probeCtx)}
		})
	}
	results := p.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].order < results[b].order })
	for _, result := range results {
		checks = append(checks, result.check)
	}

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) catalogCheck(context.Context) domain.HealthCheck {
	if s.Catalog == nil {
		return fail("Action catalog", "not loaded")
	}
	return ok("Action catalog", fmt.Sprintf("version %s, %d actions", s.Catalog.Version(), s.Catalog.Len()))
}

func (s *Service) entryPointCheck(ctx context.Context) domain.HealthCheck {
	if s.Bridge == nil {
		return warn("Host bridge", "bridge not initialized")
	}
	if err := s.Bridge.EntryPointAvailable(ctx); err != nil {
		return fail("Host bridge", err.Error())
	}
	return ok("Host bridge", domain.BridgeEntryPoint+" is available")
}

func (s *Service) consistencyCheck(ctx context.Context) domain.HealthCheck {
	if s.Bridge == nil || s.Catalog == nil {
		return warn("Catalog consistency", "skipped")
	}
	names, err := s.Bridge.RegisteredActions(ctx)
	if err != nil {
		return warn("Catalog consistency", err.Error())
	}
	if err := s.Catalog.VerifyAgainst(names); err != nil {
		return fail("Catalog consistency", err.Error())
	}
	return ok("Catalog consistency", fmt.Sprintf("%d actions match the host registry", len(names)))
}

func (s *Service) endpointCheck(ctx context.Context) domain.HealthCheck {
	if s.Endpoint == nil {
		return warn("Inference endpoint", "client not initialized")
	}
	if err := s.Endpoint.CheckConnection(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fail("Inference endpoint", "timed out")
		}
		return fail("Inference endpoint", err.Error())
	}
	return ok("Inference endpoint", "reachable")
}

func apiKeyCheck(cfg domain.Config) domain.HealthCheck {
	if cfg.ResolveAPIKey() != "" {
		return ok("API key", "configured")
	}
	name := cfg.Endpoint.AuthEnvVar
	if name == "" {
		name = "OPENAI_API_KEY"
	}
	if _, set := os.LookupEnv(name); !set {
		return warn("API key", name+" missing")
	}
	return warn("API key", name+" is empty")
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
