package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/farmstand/api/internal/domain"
	"github.com/farmstand/api/internal/repositories"
)

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Counters         repositories.CounterRepository
	Clock            func() time.Time
}

type systemService struct {
	healthRepo repositories.HealthRepository
	counters   repositories.CounterRepository
	clock      func() time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the system utility service providing health reports and counters.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &systemService{
		healthRepo: deps.HealthRepository,
		counters:   deps.Counters,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = s.clock()
	}
	if len(report.Checks) == 0 {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if report.Status == "" {
		report.Status = deriveStatus(report.Checks)
	}

	return report, nil
}

func (s *systemService) NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error) {
	if ctx == nil {
		return 0, errors.New("system service: context is required")
	}
	if s.counters == nil {
		return 0, errors.New("system service: counter repository not configured")
	}
	counterID := strings.TrimSpace(cmd.CounterID)
	if counterID == "" {
		return 0, errors.New("system service: counter id is required")
	}
	return s.counters.Next(ctx, counterID, cmd.Step)
}

func deriveStatus(checks map[string]domain.SystemHealthCheck) domain.HealthStatus {
	if len(checks) == 0 {
		return domain.HealthStatusOK
	}
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
			continue
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
