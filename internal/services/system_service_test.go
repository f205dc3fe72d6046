package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/farmstand/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestSystemServiceHealthReportDerivesStatus(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]domain.SystemHealthCheck
		want   domain.HealthStatus
	}{
		{
			name: "all ok",
			checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusOK},
			},
			want: domain.HealthStatusOK,
		},
		{
			name: "degraded check",
			checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusDegraded},
			},
			want: domain.HealthStatusDegraded,
		},
		{
			name: "error wins",
			checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusError},
				"pubsub":    {Status: domain.HealthStatusDegraded},
			},
			want: domain.HealthStatusError,
		},
		{
			name: "no checks",
			want: domain.HealthStatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{
				HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{Checks: tc.checks}},
				Clock:            testClock,
			})
			if err != nil {
				t.Fatalf("NewSystemService: %v", err)
			}

			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("HealthReport: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("status: got %s want %s", report.Status, tc.want)
			}
			if report.GeneratedAt.IsZero() {
				t.Fatalf("expected generatedAt defaulted from clock")
			}
		})
	}
}

func TestSystemServiceHealthReportKeepsRepositoryTimestamp(t *testing.T) {
	generated := time.Date(2025, time.April, 20, 8, 30, 0, 0, time.UTC)
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			GeneratedAt: generated,
		}},
		Clock: testClock,
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if !report.GeneratedAt.Equal(generated) {
		t.Fatalf("expected repository timestamp preserved, got %v", report.GeneratedAt)
	}
}

func TestSystemServiceNextCounterValue(t *testing.T) {
	counters := &stubCounterRepository{}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{},
		Counters:         counters,
		Clock:            testClock,
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	ctx := context.Background()

	value, err := svc.NextCounterValue(ctx, CounterCommand{CounterID: "orders", Step: 1})
	if err != nil {
		t.Fatalf("NextCounterValue: %v", err)
	}
	if value != 1 {
		t.Fatalf("expected 1, got %d", value)
	}

	if _, err := svc.NextCounterValue(ctx, CounterCommand{CounterID: "  "}); err == nil {
		t.Fatalf("expected error for blank counter id")
	}
}
