package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/sla"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

// ErrSweepInProgress is returned when a sweep is requested while one is running.
// The guard is process local; two instances sweeping the same tables will both
// persist and notify.
var ErrSweepInProgress = errors.New("sla sweep already in progress")

const defaultSweepWorkers = 5

// SweepDependencies bundles collaborators for the sweeper.
type SweepDependencies struct {
	Stores *repository.RequestStoreRegistry
	// Policies supplies the budget for deadlines a request does not carry;
	// nil means the request type default.
	Policies   PolicyMatcher
	Reports    repository.ReportRepository
	Recipients repository.RecipientRepository
	Notifier   NotificationPort
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Clock defaults to the wall clock in UTC.
	Clock func() time.Time
	// Workers bounds how many request kinds are swept at once.
	Workers int
	// Timeout is the per-run deadline; zero disables it.
	Timeout time.Duration
}

// SweepService re-evaluates every active request and reports transitions.
type SweepService struct {
	stores     *repository.RequestStoreRegistry
	policies   PolicyMatcher
	reports    repository.ReportRepository
	recipients repository.RecipientRepository
	notifier   NotificationPort
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      func() time.Time
	workers    int
	timeout    time.Duration

	running atomic.Bool
}

// NewSweepService constructs the service.
func NewSweepService(deps SweepDependencies) *SweepService {
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultSweepWorkers
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepService{
		stores:     deps.Stores,
		policies:   deps.Policies,
		reports:    deps.Reports,
		recipients: deps.Recipients,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     logger,
		clock:      clock,
		workers:    workers,
		timeout:    deps.Timeout,
	}
}

// Running reports whether a sweep is in flight.
func (s *SweepService) Running() bool {
	return s.running.Load()
}

// Run sweeps every request kind at the current clock.
func (s *SweepService) Run(ctx context.Context) (*domain.SweepReport, error) {
	return s.RunAt(ctx, s.clock())
}

// ManualTrigger runs a sweep synchronously for an operator. An overlapping
// run is reported as a conflict that still matches ErrSweepInProgress.
func (s *SweepService) ManualTrigger(ctx context.Context) (*domain.SweepReport, error) {
	report, err := s.Run(ctx)
	if errors.Is(err, ErrSweepInProgress) {
		return nil, apperrors.NewConflictWithCause("SWEEP_IN_PROGRESS", "a sweep is already running", err)
	}
	return report, err
}

type kindResult struct {
	kind    domain.RequestType
	summary domain.KindSweepSummary
	updates []domain.StatusUpdate
	errors  []string
}

// RunAt sweeps every request kind, evaluating statuses at now.
func (s *SweepService) RunAt(ctx context.Context, now time.Time) (*domain.SweepReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("sla sweep already running; skipping")
		s.metrics.IncSweepSkipped()
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)

	report := &domain.SweepReport{
		ID:        uuid.NewString(),
		StartedAt: s.clock(),
		ByKind:    make(map[domain.RequestType]domain.KindSweepSummary),
		Updates:   []domain.StatusUpdate{},
		Errors:    []string{},
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	kinds := s.stores.Kinds()
	results := make([]kindResult, len(kinds))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, kind := range kinds {
		g.Go(func() error {
			results[i] = s.sweepKind(runCtx, kind, now)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		res.summary.Errors = len(res.errors)
		report.ByKind[res.kind] = res.summary
		report.Checked += res.summary.Checked
		report.Updated += res.summary.Updated
		report.Breached += res.summary.Breached
		report.AtRisk += res.summary.AtRisk
		report.Updates = append(report.Updates, res.updates...)
		report.Errors = append(report.Errors, res.errors...)
		if res.summary.Skipped {
			report.Skipped = append(report.Skipped, res.kind)
			s.metrics.IncKindSkipped(string(res.kind))
			s.logger.Warn("sla sweep deadline reached; kind left unfinished", zap.String("request_kind", string(res.kind)))
		}
	}
	report.FinishedAt = s.clock()
	s.metrics.ObserveSweep(report.Duration())

	if s.reports != nil {
		if err := s.reports.SaveSweep(ctx, report); err != nil {
			s.logger.Warn("unable to store sweep report", zap.String("sweep_id", report.ID), zap.Error(err))
		}
	}

	s.logger.Info("sla sweep completed",
		zap.String("sweep_id", report.ID),
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("breached", report.Breached),
		zap.Int("at_risk", report.AtRisk),
		zap.Int("errors", len(report.Errors)),
		zap.Int("skipped_kinds", len(report.Skipped)),
		zap.Duration("duration", report.Duration()))
	return report, nil
}

func (s *SweepService) sweepKind(ctx context.Context, kind domain.RequestType, now time.Time) kindResult {
	res := kindResult{kind: kind}
	if ctx.Err() != nil {
		res.summary.Skipped = true
		return res
	}

	store, ok := s.stores.Get(kind)
	if !ok {
		return res
	}
	snapshots, err := store.ListActive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.summary.Skipped = true
			return res
		}
		s.logger.Error("unable to load active requests", zap.String("request_kind", string(kind)), zap.Error(err))
		s.metrics.IncSweepError(string(kind), "load")
		res.errors = append(res.errors, fmt.Sprintf("%s: %v", kind, err))
		return res
	}

	policies := newPolicyCache(s.policies)
	for _, snapshot := range snapshots {
		if ctx.Err() != nil || !s.sweepItem(ctx, store, policies, &res, snapshot, now) {
			res.summary.Skipped = true
			return res
		}
	}
	return res
}

// sweepItem evaluates one request and reports false when the run deadline
// interrupted it; the interruption is not recorded as an item error.
func (s *SweepService) sweepItem(ctx context.Context, store repository.RequestStore, policies *policyCache, res *kindResult, snapshot domain.RequestSLASnapshot, now time.Time) bool {
	kind := string(res.kind)
	policy, err := policies.lookup(ctx, snapshot.RequestType, snapshot.Priority)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.itemError(res, snapshot.RequestID, "policy", err)
		return true
	}
	eval := sla.EvaluateSnapshot(policy, snapshot, now)
	if eval.Err != nil {
		s.itemError(res, snapshot.RequestID, "evaluate", eval.Err)
		return true
	}

	status := eval.Evaluation.Status
	res.summary.Checked++
	s.metrics.IncChecked(kind, string(status))
	switch status {
	case domain.SLAStatusBreached:
		res.summary.Breached++
	case domain.SLAStatusAtRisk:
		res.summary.AtRisk++
	}

	if !snapshot.HasChanged(status) {
		return true
	}
	if err := store.UpdateStatus(ctx, snapshot.RequestID, status); err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.itemError(res, snapshot.RequestID, "update", err)
		return true
	}
	res.summary.Updated++
	s.metrics.IncTransition(kind, string(status))
	res.updates = append(res.updates, domain.StatusUpdate{
		RequestID:      snapshot.RequestID,
		RequestKind:    res.kind,
		RequestNumber:  snapshot.RequestNumber,
		PreviousStatus: snapshot.CurrentStatus,
		NewStatus:      status,
		IsBreached:     status == domain.SLAStatusBreached,
		IsAtRisk:       status == domain.SLAStatusAtRisk,
		SubscriberID:   snapshot.SubscriberID,
		ProviderID:     snapshot.ProviderID,
	})

	if err := s.notifyTransition(ctx, snapshot, eval.Deadlines, status, now); err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.itemError(res, snapshot.RequestID, "notify", err)
	}
	return true
}

func (s *SweepService) itemError(res *kindResult, requestID, stage string, err error) {
	s.logger.Warn("sla sweep item failed",
		zap.String("request_kind", string(res.kind)),
		zap.String("request_id", requestID),
		zap.String("stage", stage),
		zap.Error(err))
	s.metrics.IncSweepError(string(res.kind), stage)
	res.errors = append(res.errors, fmt.Sprintf("%s:%s: %v", res.kind, requestID, err))
}

func (s *SweepService) notifyTransition(ctx context.Context, snapshot domain.RequestSLASnapshot, d domain.SLADeadlines, status domain.SLAStatus, now time.Time) error {
	if s.notifier == nil {
		return nil
	}
	switch status {
	case domain.SLAStatusBreached:
		return s.notifier.NotifySLABreach(ctx, events.SLABreachPayload{
			RequestID:     snapshot.RequestID,
			RequestNumber: snapshot.RequestNumber,
			RequestType:   snapshot.RequestType,
			SubscriberID:  snapshot.SubscriberID,
			ProviderID:    snapshot.ProviderID,
			SLADeadline:   d.ResolutionDeadline,
			BreachedAt:    now,
		})
	case domain.SLAStatusAtRisk:
		return s.notifier.NotifySLAAtRisk(ctx, events.SLAAtRiskPayload{
			RequestID:      snapshot.RequestID,
			RequestNumber:  snapshot.RequestNumber,
			RequestType:    snapshot.RequestType,
			SubscriberID:   snapshot.SubscriberID,
			ProviderID:     snapshot.ProviderID,
			SLADeadline:    d.ResolutionDeadline,
			HoursRemaining: hoursRemaining(d, now),
		})
	}
	return nil
}

// hoursRemaining is the time to the resolution deadline in hours, one decimal.
func hoursRemaining(d domain.SLADeadlines, now time.Time) float64 {
	hours := d.TimeRemaining(now, domain.DimensionResolution).Hours()
	return math.Round(hours*10) / 10
}

// LatestReport returns the most recent stored sweep report.
func (s *SweepService) LatestReport(ctx context.Context) (*domain.SweepReport, error) {
	if s.reports == nil {
		return nil, apperrors.NewNotFound("sweep report", nil)
	}
	report, err := s.reports.LatestSweep(ctx)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("sweep report", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return report, nil
}

// RunDailyReportAt reports on the UTC day before now.
func (s *SweepService) RunDailyReportAt(ctx context.Context, now time.Time) (*domain.DailyReport, error) {
	return s.RunDailyReport(ctx, now.UTC().AddDate(0, 0, -1))
}

// RunDailyReport aggregates requests created on reportDate (UTC) by persisted
// status and notifies every report recipient.
func (s *SweepService) RunDailyReport(ctx context.Context, reportDate time.Time) (*domain.DailyReport, error) {
	day := reportDate.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	report := &domain.DailyReport{
		ReportDate:    from,
		GeneratedAt:   s.clock(),
		ByRequestType: make(map[domain.RequestType]domain.StatusCounts),
	}

	for _, kind := range s.stores.Kinds() {
		store, _ := s.stores.Get(kind)
		snapshots, err := store.ListCreatedBetween(ctx, from, to)
		if err != nil {
			s.logger.Error("unable to load requests for daily report", zap.String("request_kind", string(kind)), zap.Error(err))
			s.metrics.IncSweepError(string(kind), "report")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", kind, err))
			continue
		}

		var counts domain.StatusCounts
		missing := 0
		for _, snapshot := range snapshots {
			status := domain.SLAStatusOnTrack
			if snapshot.CurrentStatus != nil {
				status = *snapshot.CurrentStatus
			} else {
				missing++
			}
			counts.Add(status)
		}
		if missing > 0 {
			s.logger.Info("requests without sla status counted as on track",
				zap.String("request_kind", string(kind)),
				zap.Int("count", missing))
		}
		report.ByRequestType[kind] = counts
		report.Summary.Merge(counts)
	}

	s.notifyRecipients(ctx, report)

	if s.reports != nil {
		if err := s.reports.SaveDaily(ctx, report); err != nil {
			s.logger.Warn("unable to store daily report", zap.Time("report_date", from), zap.Error(err))
		}
	}

	s.logger.Info("sla daily report generated",
		zap.Time("report_date", from),
		zap.Int("total", report.Summary.Total),
		zap.Int("breached", report.Summary.Breached),
		zap.Int("at_risk", report.Summary.AtRisk),
		zap.Int("recipients", report.Recipients))
	return report, nil
}

func (s *SweepService) notifyRecipients(ctx context.Context, report *domain.DailyReport) {
	if s.recipients == nil || s.notifier == nil {
		return
	}
	recipients, err := s.recipients.ListReportRecipients(ctx)
	if err != nil {
		s.logger.Error("unable to load report recipients", zap.Error(err))
		report.Errors = append(report.Errors, fmt.Sprintf("recipients: %v", err))
		return
	}

	summary := events.DailySummary{
		TotalActive: report.Summary.Total,
		Breached:    report.Summary.Breached,
		AtRisk:      report.Summary.AtRisk,
		OnTrack:     report.Summary.OnTrack,
	}
	for _, rec := range recipients {
		err := s.notifier.NotifySLADailyReport(ctx, events.SLADailyReportPayload{
			AdminUserID:   rec.ID,
			AdminEmail:    rec.Email,
			ReportDate:    report.ReportDate,
			Summary:       summary,
			ByRequestType: report.ByRequestType,
		})
		if err != nil {
			s.logger.Warn("daily report notification failed", zap.String("admin_id", rec.ID), zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("recipient:%s: %v", rec.ID, err))
			continue
		}
		report.Recipients++
	}
}

// DailyReport returns the stored report for date.
func (s *SweepService) DailyReport(ctx context.Context, date time.Time) (*domain.DailyReport, error) {
	if s.reports == nil {
		return nil, apperrors.NewNotFound("daily report", nil)
	}
	report, err := s.reports.FindDaily(ctx, date)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("daily report", map[string]any{"date": date.UTC().Format("2006-01-02")})
		}
		return nil, apperrors.MapError(err)
	}
	return report, nil
}
