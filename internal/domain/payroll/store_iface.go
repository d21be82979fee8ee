package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type StoreAPI interface {
	EntryStore
	CreatePeriod(ctx context.Context, tenantID, createdBy string, in PeriodInput) (Period, error)
	GetPeriod(ctx context.Context, tenantID, id string) (Period, error)
	ListPeriods(ctx context.Context, tenantID string, filter PeriodFilter) ([]Period, int, error)
	UpdateDraftPeriod(ctx context.Context, tenantID, id string, in PeriodInput) (Period, bool, error)
	DeletePeriod(ctx context.Context, tenantID, id string) (bool, error)
	// ClaimForProcessing moves a draft period to processing in one
	// conditional update. claimed is false when the period was not draft.
	ClaimForProcessing(ctx context.Context, tenantID, id string) (period Period, claimed bool, err error)
	// ReleaseClaim returns a processing period to draft and removes its
	// entries. released is false when the period was not processing.
	ReleaseClaim(ctx context.Context, tenantID, id string) (released bool, err error)
	TransitionPeriod(ctx context.Context, tenantID, id string, from []string, to, entryStatus string) (Period, bool, error)
	RecomputeTotals(ctx context.Context, tenantID, id string) (Period, error)
	ListCandidates(ctx context.Context, tenantID string, start, end time.Time) ([]Candidate, error)
	ListEntries(ctx context.Context, tenantID, periodID string) ([]Entry, error)
	GetEntry(ctx context.Context, tenantID, id string) (Entry, error)
	UpdateEntryAdjustment(ctx context.Context, tenantID, id string, amount decimal.Decimal) (Entry, bool, error)
	SetPayslipPath(ctx context.Context, tenantID, entryID, path string) error
	ListRates(ctx context.Context, tenantID, userID string) ([]PayRate, error)
	CreateRate(ctx context.Context, tenantID, createdBy string, in RateInput) (PayRate, error)
	UserExists(ctx context.Context, tenantID, userID string) (bool, error)
}
