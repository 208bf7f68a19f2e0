package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/ecoloop/recycle-league/internal/config"
	"github.com/ecoloop/recycle-league/pkg/logger"
)

// mockSeasonService counts sweep invocations.
type mockSeasonService struct {
	closed  int
	calls   int
	wantErr error
}

func (m *mockSeasonService) CloseExpired(ctx context.Context) (int, error) {
	m.calls++
	return m.closed, m.wantErr
}

// mockGoalsService counts rollover invocations.
type mockGoalsService struct {
	processed int
	calls     int
	wantErr   error
}

func (m *mockGoalsService) RolloverDue(ctx context.Context) (int, error) {
	m.calls++
	return m.processed, m.wantErr
}

func TestBuildCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "valid morning time",
			input: "09:30",
			want:  "30 9 * * *",
		},
		{
			name:  "valid midnight",
			input: "00:00",
			want:  "0 0 * * *",
		},
		{
			name:  "valid end of day",
			input: "23:59",
			want:  "59 23 * * *",
		},
		{
			name:    "missing colon",
			input:   "0930",
			wantErr: true,
		},
		{
			name:    "hour out of range",
			input:   "24:00",
			wantErr: true,
		},
		{
			name:    "minute out of range",
			input:   "12:60",
			wantErr: true,
		},
		{
			name:    "non-numeric",
			input:   "aa:bb",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildCronExpression(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("buildCronExpression(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Errorf("buildCronExpression(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.want {
				t.Errorf("buildCronExpression(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestService_StartDisabled(t *testing.T) {
	cfg := &config.SchedulerConfig{Enabled: false}
	svc := NewService(cfg, &mockSeasonService{}, &mockGoalsService{}, logger.New("error", "json", "stdout"))

	if err := svc.Start(); err != nil {
		t.Errorf("Start() with disabled scheduler should be a no-op, got %v", err)
	}
	svc.Stop()
}

func TestService_StartRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SchedulerConfig
	}{
		{
			name: "invalid timezone",
			cfg:  config.SchedulerConfig{Enabled: true, SessionCloseTime: "02:00", Timezone: "Mars/Olympus"},
		},
		{
			name: "invalid close time",
			cfg:  config.SchedulerConfig{Enabled: true, SessionCloseTime: "late", Timezone: "UTC"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&tt.cfg, &mockSeasonService{}, &mockGoalsService{}, logger.New("error", "json", "stdout"))
			if err := svc.Start(); err == nil {
				t.Error("Start() expected error")
				svc.Stop()
			}
		})
	}
}

func TestService_StartAndStop(t *testing.T) {
	cfg := &config.SchedulerConfig{
		Enabled:          true,
		SessionCloseTime: "02:00",
		GoalRolloverTime: "0 3 * * *",
		Timezone:         "UTC",
	}
	svc := NewService(cfg, &mockSeasonService{}, &mockGoalsService{}, logger.New("error", "json", "stdout"))

	if err := svc.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	svc.Stop()
}

func TestService_RunSessionCloseSweep(t *testing.T) {
	seasons := &mockSeasonService{closed: 2}
	svc := NewService(&config.SchedulerConfig{}, seasons, &mockGoalsService{}, logger.New("error", "json", "stdout"))

	svc.runSessionCloseSweep(context.Background())
	if seasons.calls != 1 {
		t.Errorf("Expected 1 sweep call, got %d", seasons.calls)
	}

	seasons.wantErr = errors.New("database unavailable")
	svc.runSessionCloseSweep(context.Background())
	if seasons.calls != 2 {
		t.Errorf("Expected sweep to run despite errors, got %d calls", seasons.calls)
	}
}

func TestService_RunGoalRollover(t *testing.T) {
	goals := &mockGoalsService{processed: 3}
	svc := NewService(&config.SchedulerConfig{}, &mockSeasonService{}, goals, logger.New("error", "json", "stdout"))

	svc.runGoalRollover(context.Background())
	if goals.calls != 1 {
		t.Errorf("Expected 1 rollover call, got %d", goals.calls)
	}
}
