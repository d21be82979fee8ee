package payroll

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"timeledger/internal/domain/auth"
	"timeledger/internal/domain/events"
	"timeledger/internal/domain/notifications"
	"timeledger/internal/requestctx"
)

type Notifier interface {
	Create(ctx context.Context, tenantID, userID, ntype, title, body string) error
}

// JobRunner records a unit of work as a job run.
type JobRunner interface {
	RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error)
}

type Metrics interface {
	RecordPayrollRun(generated, skipped int, duration time.Duration)
	RecordPayrollTransition(action string)
}

type PayslipStore interface {
	Save(ctx context.Context, name string, pdf []byte) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
}

type Options struct {
	Policy   Policy
	Workers  int
	Events   events.Publisher
	Notifier Notifier
	Jobs     JobRunner
	Metrics  Metrics
	Payslips PayslipStore
}

type Service struct {
	store     StoreAPI
	generator *Generator
	events    events.Publisher
	notifier  Notifier
	jobs      JobRunner
	metrics   Metrics
	payslips  PayslipStore
	now       func() time.Time
}

func NewService(store StoreAPI, opts Options) *Service {
	policy := opts.Policy
	if policy.WeeklyOvertimeHours.IsZero() || policy.WorkdayHours.IsZero() {
		policy = DefaultPolicy()
	}
	publisher := opts.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:     store,
		generator: NewGenerator(store, policy, opts.Workers),
		events:    publisher,
		notifier:  opts.Notifier,
		jobs:      opts.Jobs,
		metrics:   opts.Metrics,
		payslips:  opts.Payslips,
		now:       time.Now,
	}
}

func (s *Service) CreatePeriod(ctx context.Context, session auth.Session, in PeriodInput) (Period, error) {
	in, err := prepareInput(in)
	if err != nil {
		return Period{}, err
	}
	period, err := s.store.CreatePeriod(ctx, session.TenantID, session.UserID, in)
	if err != nil {
		return Period{}, fmt.Errorf("create payroll period: %w", err)
	}
	s.publishPeriod(ctx, session.TenantID, period)
	return period, nil
}

func (s *Service) GetPeriod(ctx context.Context, session auth.Session, id string) (Period, error) {
	if !validID(id) {
		return Period{}, ErrPeriodNotFound
	}
	return s.store.GetPeriod(ctx, session.TenantID, id)
}

func (s *Service) ListPeriods(ctx context.Context, session auth.Session, filter PeriodFilter) ([]Period, int, error) {
	if err := validateFilter(filter); err != nil {
		return nil, 0, err
	}
	periods, total, err := s.store.ListPeriods(ctx, session.TenantID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list payroll periods: %w", err)
	}
	return periods, total, nil
}

// UpdatePeriod edits a draft period. Any other status is refused.
func (s *Service) UpdatePeriod(ctx context.Context, session auth.Session, id string, patch PeriodPatch) (Period, error) {
	current, err := s.GetPeriod(ctx, session, id)
	if err != nil {
		return Period{}, err
	}
	if err := CheckTransition(ActionUpdate, current.Status); err != nil {
		return Period{}, err
	}

	in := PeriodInput{
		Name:       current.Name,
		PeriodType: current.PeriodType,
		StartDate:  current.StartDate,
		EndDate:    current.EndDate,
		Selection:  current.Selection,
	}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.PeriodType != nil {
		in.PeriodType = *patch.PeriodType
	}
	if patch.StartDate != nil {
		in.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		in.EndDate = *patch.EndDate
	}
	if patch.Selection != nil {
		in.Selection = *patch.Selection
	}
	in, err = prepareInput(in)
	if err != nil {
		return Period{}, err
	}

	updated, ok, err := s.store.UpdateDraftPeriod(ctx, session.TenantID, id, in)
	if err != nil {
		return Period{}, fmt.Errorf("update payroll period: %w", err)
	}
	if !ok {
		return Period{}, s.refusal(ctx, session.TenantID, id, ActionUpdate)
	}
	s.publishPeriod(ctx, session.TenantID, updated)
	return updated, nil
}

// DeletePeriod hard-deletes a period and its entries. Paid periods need an
// explicit confirmation.
func (s *Service) DeletePeriod(ctx context.Context, session auth.Session, id string, confirmed bool) (Period, error) {
	current, err := s.GetPeriod(ctx, session, id)
	if err != nil {
		return Period{}, err
	}
	if current.Status == PeriodStatusPaid && !confirmed {
		return Period{}, ErrPaidDeleteUnconfirmed
	}
	deleted, err := s.store.DeletePeriod(ctx, session.TenantID, id)
	if err != nil {
		return Period{}, fmt.Errorf("delete payroll period: %w", err)
	}
	if !deleted {
		return Period{}, ErrPeriodNotFound
	}
	s.events.Publish(ctx, events.New(events.TypePayrollPeriod, session.TenantID, events.Resource{Type: events.ResourcePayrollPeriod, ID: id}))
	return current, nil
}

// Process claims a draft period and generates one entry per selected employee.
// Concurrent callers race on the claim; only the winner generates. Once
// claimed, the run no longer follows the caller's cancellation. A run that
// fails hands the period back to draft with its partial entries removed.
func (s *Service) Process(ctx context.Context, session auth.Session, id string) (ProcessResult, error) {
	if !validID(id) {
		return ProcessResult{}, ErrPeriodNotFound
	}
	ctx, span := tracer.Start(ctx, "payroll.process")
	defer span.End()

	started := s.now()
	period, claimed, err := s.store.ClaimForProcessing(ctx, session.TenantID, id)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("claim payroll period: %w", err)
	}
	if !claimed {
		return ProcessResult{}, s.refusal(ctx, session.TenantID, id, ActionProcess)
	}
	ctx = context.WithoutCancel(ctx)

	var report GenerationReport
	run := func(ctx context.Context) (any, error) {
		var err error
		report, err = s.generate(ctx, session.TenantID, period)
		return report, err
	}
	if s.jobs != nil {
		_, err = s.jobs.RunNow(ctx, JobPayrollProcess, session.TenantID, run)
	} else {
		_, err = run(ctx)
	}
	if err != nil {
		s.releaseClaim(ctx, session.TenantID, id, err)
		return ProcessResult{}, fmt.Errorf("generate payroll entries: %w", err)
	}

	period, err = s.store.RecomputeTotals(ctx, session.TenantID, id)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("recompute payroll totals: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordPayrollRun(report.Generated, len(report.Skipped), s.now().Sub(started))
		s.metrics.RecordPayrollTransition(ActionProcess)
	}
	s.publishPeriod(ctx, session.TenantID, period)
	return ProcessResult{Period: period, Report: report}, nil
}

func (s *Service) releaseClaim(ctx context.Context, tenantID, id string, cause error) {
	log := requestctx.Logger(ctx).With("periodId", id, "cause", cause)
	released, err := s.store.ReleaseClaim(ctx, tenantID, id)
	switch {
	case err != nil:
		log.Error("payroll claim release failed", "err", err)
		if _, err := s.store.RecomputeTotals(ctx, tenantID, id); err != nil {
			log.Error("payroll totals recompute failed", "err", err)
		}
	case released:
		log.Warn("payroll run failed; period returned to draft")
	}
}

func (s *Service) generate(ctx context.Context, tenantID string, period Period) (GenerationReport, error) {
	candidates, err := s.store.ListCandidates(ctx, tenantID, period.StartDate, period.EndDate)
	if err != nil {
		return GenerationReport{}, fmt.Errorf("list payroll candidates: %w", err)
	}
	selected, skipped := SelectEmployees(period.Selection, candidates, period.StartDate, period.EndDate)
	report, err := s.generator.Generate(ctx, tenantID, period, selected)
	report.Skipped = append(report.Skipped, skipped...)
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].UserID < report.Skipped[j].UserID })
	if len(skipped) > 0 {
		requestctx.Logger(ctx).Info("payroll employees skipped", "periodId", period.ID, "skipped", len(skipped))
	}
	return report, err
}

// Approve locks the entries and tells the period's creator when someone
// else approved it.
func (s *Service) Approve(ctx context.Context, session auth.Session, id string) (Period, error) {
	period, err := s.transition(ctx, session, id, ActionApprove)
	if err != nil {
		return Period{}, err
	}
	if s.notifier != nil && period.CreatedBy != "" && period.CreatedBy != session.UserID {
		body := fmt.Sprintf("%s was approved with %d entries totalling %s.", period.Name, period.EntriesCount, period.TotalAmount.StringFixed(2))
		if err := s.notifier.Create(ctx, session.TenantID, period.CreatedBy, notifications.TypePayrollPeriodApproved, "Payroll period approved", body); err != nil {
			requestctx.Logger(ctx).Warn("approval notification failed", "periodId", period.ID, "err", err)
		}
	}
	return period, nil
}

func (s *Service) Void(ctx context.Context, session auth.Session, id string) (Period, error) {
	return s.transition(ctx, session, id, ActionVoid)
}

// MarkPaid settles an approved period, then renders payslips and notifies
// each paid employee.
func (s *Service) MarkPaid(ctx context.Context, session auth.Session, id string) (Period, error) {
	period, err := s.transition(ctx, session, id, ActionMarkPaid)
	if err != nil {
		return Period{}, err
	}
	s.issuePayslips(ctx, session.TenantID, period)
	return period, nil
}

func (s *Service) transition(ctx context.Context, session auth.Session, id, action string) (Period, error) {
	if !validID(id) {
		return Period{}, ErrPeriodNotFound
	}
	period, ok, err := s.store.TransitionPeriod(ctx, session.TenantID, id, AllowedFrom(action), TargetStatus(action), entryStatusFor[action])
	if err != nil {
		return Period{}, fmt.Errorf("%s payroll period: %w", action, err)
	}
	if !ok {
		return Period{}, s.refusal(ctx, session.TenantID, id, action)
	}
	if s.metrics != nil {
		s.metrics.RecordPayrollTransition(action)
	}
	s.publishPeriod(ctx, session.TenantID, period)
	return period, nil
}

// refusal explains why a guarded update matched no row.
func (s *Service) refusal(ctx context.Context, tenantID, id, action string) error {
	current, err := s.store.GetPeriod(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return transitionError(action, current.Status)
}

func (s *Service) issuePayslips(ctx context.Context, tenantID string, period Period) {
	entries, err := s.store.ListEntries(ctx, tenantID, period.ID)
	if err != nil {
		requestctx.Logger(ctx).Warn("payslip entries lookup failed", "periodId", period.ID, "err", err)
		return
	}
	for _, entry := range entries {
		if entry.Status != EntryStatusPaid {
			continue
		}
		if s.payslips != nil {
			if err := s.storePayslip(ctx, tenantID, period, entry); err != nil {
				requestctx.Logger(ctx).Warn("payslip generation failed", "entryId", entry.ID, "err", err)
			}
		}
		if s.notifier != nil {
			body := fmt.Sprintf("Your pay of %s %s for %s has been issued.", entry.NetAmount.StringFixed(2), entry.Currency, period.Name)
			if err := s.notifier.Create(ctx, tenantID, entry.UserID, notifications.TypePaymentIssued, "Payment issued", body); err != nil {
				requestctx.Logger(ctx).Warn("payment notification failed", "entryId", entry.ID, "err", err)
			}
		}
	}
}

func (s *Service) storePayslip(ctx context.Context, tenantID string, period Period, entry Entry) error {
	pdf, err := RenderPayslip(period, entry)
	if err != nil {
		return err
	}
	path, err := s.payslips.Save(ctx, entry.ID, pdf)
	if err != nil {
		return err
	}
	return s.store.SetPayslipPath(ctx, tenantID, entry.ID, path)
}

func (s *Service) ListEntries(ctx context.Context, session auth.Session, periodID string) ([]Entry, error) {
	if _, err := s.GetPeriod(ctx, session, periodID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, session.TenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("list payroll entries: %w", err)
	}
	return entries, nil
}

// AdjustEntry sets the manual adjustment of an entry while its period is
// processing; net and period totals follow.
func (s *Service) AdjustEntry(ctx context.Context, session auth.Session, entryID string, amount decimal.Decimal) (Entry, error) {
	if !validID(entryID) {
		return Entry{}, ErrEntryNotFound
	}
	entry, err := s.store.GetEntry(ctx, session.TenantID, entryID)
	if err != nil {
		return Entry{}, err
	}
	period, err := s.store.GetPeriod(ctx, session.TenantID, entry.PeriodID)
	if err != nil {
		return Entry{}, err
	}
	if err := CheckTransition(ActionAdjust, period.Status); err != nil {
		return Entry{}, err
	}

	updated, ok, err := s.store.UpdateEntryAdjustment(ctx, session.TenantID, entryID, amount.Round(2))
	if err != nil {
		return Entry{}, fmt.Errorf("adjust payroll entry: %w", err)
	}
	if !ok {
		return Entry{}, s.refusal(ctx, session.TenantID, entry.PeriodID, ActionAdjust)
	}
	period, err = s.store.RecomputeTotals(ctx, session.TenantID, entry.PeriodID)
	if err != nil {
		return Entry{}, fmt.Errorf("recompute payroll totals: %w", err)
	}
	s.publishPeriod(ctx, session.TenantID, period)
	return updated, nil
}

// Payslip returns the decrypted PDF of an entry. Employees only reach their own.
func (s *Service) Payslip(ctx context.Context, session auth.Session, entryID string) ([]byte, Entry, error) {
	if !validID(entryID) {
		return nil, Entry{}, ErrEntryNotFound
	}
	entry, err := s.store.GetEntry(ctx, session.TenantID, entryID)
	if err != nil {
		return nil, Entry{}, err
	}
	if !session.CanActFor(entry.UserID) {
		return nil, Entry{}, ErrPayslipForbidden
	}
	if entry.PayslipPath == "" || s.payslips == nil {
		return nil, Entry{}, ErrPayslipNotFound
	}
	data, err := s.payslips.Load(ctx, entry.PayslipPath)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("load payslip: %w", err)
	}
	return data, entry, nil
}

func (s *Service) ListRates(ctx context.Context, session auth.Session, userID string) ([]PayRate, error) {
	if userID != "" && !validID(userID) {
		return nil, fieldError("user_id", "must be a valid id")
	}
	rates, err := s.store.ListRates(ctx, session.TenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("list pay rates: %w", err)
	}
	today := s.now()
	for i := range rates {
		rates[i].IsActive = rateActive(rates[i], today)
	}
	return rates, nil
}

// ActiveRate returns the rate covering the given day for one user.
func (s *Service) ActiveRate(ctx context.Context, session auth.Session, userID string, on time.Time) (PayRate, error) {
	if !validID(userID) {
		return PayRate{}, fieldError("user_id", "must be a valid id")
	}
	if on.IsZero() {
		on = s.now()
	}
	rates, err := s.ListRates(ctx, session, userID)
	if err != nil {
		return PayRate{}, err
	}
	rate, ok := ResolveRate(rates, on, on)
	if !ok {
		return PayRate{}, ErrNoActiveRate
	}
	return rate, nil
}

// CreateRate adds a rate and closes the user's previous open rate.
func (s *Service) CreateRate(ctx context.Context, session auth.Session, in RateInput) (PayRate, error) {
	in, err := prepareRate(in, s.now())
	if err != nil {
		return PayRate{}, err
	}
	exists, err := s.store.UserExists(ctx, session.TenantID, in.UserID)
	if err != nil {
		return PayRate{}, fmt.Errorf("lookup rate user: %w", err)
	}
	if !exists {
		return PayRate{}, ErrUserNotFound
	}
	rate, err := s.store.CreateRate(ctx, session.TenantID, session.UserID, in)
	if err != nil {
		return PayRate{}, fmt.Errorf("create pay rate: %w", err)
	}
	rate.IsActive = rateActive(rate, s.now())
	s.events.Publish(ctx, events.New(events.TypePayRateUpdated, session.TenantID, events.Resource{Type: events.ResourcePayRate, ID: rate.ID, UserID: rate.UserID}))
	return rate, nil
}

func rateActive(rate PayRate, today time.Time) bool {
	return rate.EffectiveTo == nil || !dateOnly(*rate.EffectiveTo).Before(dateOnly(today))
}

func (s *Service) publishPeriod(ctx context.Context, tenantID string, period Period) {
	evt := events.New(events.TypePayrollPeriod, tenantID, events.Resource{Type: events.ResourcePayrollPeriod, ID: period.ID})
	evt.Status = period.Status
	s.events.Publish(ctx, evt)
}
