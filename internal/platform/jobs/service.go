package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"timeledger/internal/platform/querier"
)

const (
	JobMaintenance = "maintenance"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Task is a recurring maintenance step. Run returns the number of rows it
// removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

type Service struct {
	DB          querier.Querier
	Interval    time.Duration
	Maintenance []Task
	queue       chan job
}

type job struct {
	Type     string
	TenantID string
	Run      func(context.Context) (any, error)
}

func New(db querier.Querier, interval time.Duration, tasks ...Task) *Service {
	return &Service{
		DB:          db,
		Interval:    interval,
		Maintenance: tasks,
		queue:       make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Interval > 0 && len(s.Maintenance) > 0 {
		go s.scheduleMaintenance(ctx, s.Interval)
	}
}

func (s *Service) Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		return false
	}
}

// RunNow executes run synchronously and records it in job_runs.
func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	var tenant any
	if j.TenantID != "" {
		tenant = j.TenantID
	}
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, tenant, j.Type, StatusRunning).Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error(), "result": details}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(context.WithoutCancel(ctx), `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobMaintenance, "", s.runMaintenance)
		}
	}
}

// runMaintenance runs every task even when an earlier one fails.
func (s *Service) runMaintenance(ctx context.Context) (any, error) {
	removed := map[string]int64{}
	var firstErr error
	for _, task := range s.Maintenance {
		n, err := task.Run(ctx)
		if err != nil {
			slog.Warn("maintenance task failed", "task", task.Name, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed[task.Name] = n
	}
	return removed, firstErr
}
