package payroll

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"timeledger/internal/requestctx"
)

var tracer = otel.Tracer("timeledger/payroll")

// EntryStore is the part of the store the generator writes through.
type EntryStore interface {
	ListWorkLogs(ctx context.Context, tenantID, userID string, from, to time.Time) ([]WorkLog, error)
	InsertEntry(ctx context.Context, tenantID string, entry Entry) (bool, error)
}

// Generator prices selected employees in parallel. Each employee is an
// independent row, so one failure never undoes another.
type Generator struct {
	store   EntryStore
	policy  Policy
	workers int
}

func NewGenerator(store EntryStore, policy Policy, workers int) *Generator {
	if workers <= 0 {
		workers = 1
	}
	return &Generator{store: store, policy: policy, workers: workers}
}

func (g *Generator) Generate(ctx context.Context, tenantID string, period Period, selected []Selected) (GenerationReport, error) {
	ctx, span := tracer.Start(ctx, "payroll.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("payroll.period_id", period.ID),
		attribute.Int("payroll.selected", len(selected)),
	)

	report := GenerationReport{Skipped: []SkippedEmployee{}, TotalAmount: decimal.Zero}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.workers)
	for _, employee := range selected {
		employee := employee
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			entry, err := g.generateOne(groupCtx, tenantID, period, employee)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, errEntryExists):
				report.Skipped = append(report.Skipped, SkippedEmployee{UserID: employee.UserID, Reason: SkipReasonAlreadyExist})
			case err != nil:
				if ctxErr := groupCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				requestctx.Logger(ctx).Warn("payroll entry generation failed", "periodId", period.ID, "userId", employee.UserID, "err", err)
				report.Skipped = append(report.Skipped, SkippedEmployee{UserID: employee.UserID, Reason: "generation failed: " + err.Error()})
			default:
				report.Generated++
				report.TotalAmount = report.TotalAmount.Add(entry.NetAmount)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation interrupted")
		return report, err
	}

	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].UserID < report.Skipped[j].UserID })
	span.SetAttributes(
		attribute.Int("payroll.generated", report.Generated),
		attribute.Int("payroll.skipped", len(report.Skipped)),
	)
	return report, nil
}

var errEntryExists = errors.New("payroll entry already exists")

func (g *Generator) generateOne(ctx context.Context, tenantID string, period Period, employee Selected) (Entry, error) {
	var logs []WorkLog
	if isHoursBased(employee.Rate.RateType) {
		var err error
		logs, err = g.store.ListWorkLogs(ctx, tenantID, employee.UserID, dateOnly(period.StartDate), dateOnly(period.EndDate).AddDate(0, 0, 1))
		if err != nil {
			return Entry{}, err
		}
	}
	entry := ComputeEntry(period, employee.Rate, logs, g.policy)
	inserted, err := g.store.InsertEntry(ctx, tenantID, entry)
	if err != nil {
		return Entry{}, err
	}
	if !inserted {
		return Entry{}, errEntryExists
	}
	return entry, nil
}
