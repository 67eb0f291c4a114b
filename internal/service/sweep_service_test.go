package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/repository"
)

type recordingNotifier struct {
	mu       sync.Mutex
	breaches []events.SLABreachPayload
	atRisk   []events.SLAAtRiskPayload
	daily    []events.SLADailyReportPayload
	failFor  map[string]error
}

func (n *recordingNotifier) NotifySLABreach(_ context.Context, p events.SLABreachPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.breaches = append(n.breaches, p)
	return n.failFor[p.RequestID]
}

func (n *recordingNotifier) NotifySLAAtRisk(_ context.Context, p events.SLAAtRiskPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.atRisk = append(n.atRisk, p)
	return n.failFor[p.RequestID]
}

func (n *recordingNotifier) NotifySLADailyReport(_ context.Context, p events.SLADailyReportPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.daily = append(n.daily, p)
	return n.failFor[p.AdminUserID]
}

// stubStore lets tests fail or block a single request kind.
type stubStore struct {
	*repository.MemoryRequestStore
	listErr   error
	updateErr map[string]error
	block     chan struct{}
	entered   chan struct{}
	once      sync.Once
	// stallUpdates holds every UpdateStatus until the sweep context ends.
	stallUpdates bool
}

func (s *stubStore) ListActive(ctx context.Context) ([]domain.RequestSLASnapshot, error) {
	if s.entered != nil {
		s.once.Do(func() { close(s.entered) })
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryRequestStore.ListActive(ctx)
}

func (s *stubStore) UpdateStatus(ctx context.Context, id string, status domain.SLAStatus) error {
	if s.stallUpdates {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := s.updateErr[id]; err != nil {
		return err
	}
	return s.MemoryRequestStore.UpdateStatus(ctx, id, status)
}

func statusPtr(s domain.SLAStatus) *domain.SLAStatus {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

type SweepServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	stores   map[domain.RequestType]*repository.MemoryRequestStore
	reports  *repository.MemoryReportRepository
	notifier *recordingNotifier
	policies PolicyMatcher
}

func TestSweepServiceSuite(t *testing.T) {
	suite.Run(t, new(SweepServiceSuite))
}

func (s *SweepServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s.stores = make(map[domain.RequestType]*repository.MemoryRequestStore)
	for _, kind := range domain.RequestTypes {
		s.stores[kind] = repository.NewMemoryRequestStore(kind)
	}
	s.reports = repository.NewMemoryReportRepository()
	s.notifier = &recordingNotifier{failFor: map[string]error{}}
	s.policies = nil
}

func (s *SweepServiceSuite) service(overrides map[domain.RequestType]repository.RequestStore, recipients repository.RecipientRepository, timeout time.Duration, workers int) *SweepService {
	stores := make([]repository.RequestStore, 0, len(s.stores))
	for _, kind := range domain.RequestTypes {
		if o, ok := overrides[kind]; ok {
			stores = append(stores, o)
			continue
		}
		stores = append(stores, s.stores[kind])
	}
	return NewSweepService(SweepDependencies{
		Stores:     repository.NewRequestStoreRegistry(stores...),
		Policies:   s.policies,
		Reports:    s.reports,
		Recipients: recipients,
		Notifier:   s.notifier,
		Logger:     zap.NewNop(),
		Clock:      func() time.Time { return s.now },
		Workers:    workers,
		Timeout:    timeout,
	})
}

// putCall stores a call request (default budget 15/60/30 minutes) created age ago.
func (s *SweepServiceSuite) putCall(id string, age time.Duration, responded bool, current *domain.SLAStatus) {
	created := s.now.Add(-age)
	snap := domain.RequestSLASnapshot{
		RequestID:     id,
		RequestNumber: "CALL-" + id,
		Priority:      domain.PriorityNormal,
		CreatedAt:     created,
		SLADeadline:   timePtr(created.Add(60 * time.Minute)),
		CurrentStatus: current,
		SubscriberID:  "sub-" + id,
	}
	if responded {
		snap.RespondedAt = timePtr(created.Add(5 * time.Minute))
	}
	s.stores[domain.RequestTypeCall].Put(snap, true)
}

func (s *SweepServiceSuite) TestUnchangedStatusesStillCounted() {
	s.putCall("breached", 70*time.Minute, false, statusPtr(domain.SLAStatusBreached))
	s.putCall("at-risk", 50*time.Minute, true, statusPtr(domain.SLAStatusAtRisk))
	s.putCall("fine", 10*time.Minute, true, statusPtr(domain.SLAStatusOnTrack))

	report, err := s.service(nil, nil, 0, 0).RunAt(s.ctx, s.now)
	s.Require().NoError(err)

	s.Equal(3, report.Checked)
	s.Equal(0, report.Updated)
	s.Equal(1, report.Breached)
	s.Equal(1, report.AtRisk)
	s.Empty(report.Updates)
	s.Empty(report.Errors)
	s.Empty(s.notifier.breaches)
	s.Empty(s.notifier.atRisk)
	s.Equal(3, report.ByKind[domain.RequestTypeCall].Checked)

	latest, err := s.reports.LatestSweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(report.ID, latest.ID)
}

func (s *SweepServiceSuite) TestTransitionsPersistAndNotify() {
	s.putCall("to-breach", 70*time.Minute, true, statusPtr(domain.SLAStatusAtRisk))
	s.putCall("unset", 10*time.Minute, true, nil)

	consultationCreated := s.now.Add(-2200 * time.Minute)
	s.stores[domain.RequestTypeConsultation].Put(domain.RequestSLASnapshot{
		RequestID:     "c-1",
		RequestNumber: "CONS-1",
		Priority:      domain.PriorityNormal,
		CreatedAt:     consultationCreated,
		RespondedAt:   timePtr(consultationCreated.Add(time.Hour)),
		SLADeadline:   timePtr(consultationCreated.Add(2880 * time.Minute)),
		CurrentStatus: statusPtr(domain.SLAStatusOnTrack),
		SubscriberID:  "sub-c",
		ProviderID:    func() *string { p := "lawyer-1"; return &p }(),
	}, true)

	report, err := s.service(nil, nil, 0, 2).RunAt(s.ctx, s.now)
	s.Require().NoError(err)

	s.Equal(3, report.Updated)
	s.Equal(domain.SLAStatusBreached, *s.stores[domain.RequestTypeCall].Status("to-breach"))
	s.Equal(domain.SLAStatusOnTrack, *s.stores[domain.RequestTypeCall].Status("unset"))
	s.Equal(domain.SLAStatusAtRisk, *s.stores[domain.RequestTypeConsultation].Status("c-1"))

	s.Require().Len(s.notifier.breaches, 1)
	breach := s.notifier.breaches[0]
	s.Equal("to-breach", breach.RequestID)
	s.Equal(domain.RequestTypeCall, breach.RequestType)
	s.Equal(s.now, breach.BreachedAt)

	s.Require().Len(s.notifier.atRisk, 1)
	atRisk := s.notifier.atRisk[0]
	s.Equal("c-1", atRisk.RequestID)
	s.InDelta(11.3, atRisk.HoursRemaining, 0.0001)
	s.Require().NotNil(atRisk.ProviderID)
	s.Equal("lawyer-1", *atRisk.ProviderID)

	s.Run("update entries carry the previous status", func() {
		var found bool
		for _, u := range report.Updates {
			if u.RequestID == "to-breach" {
				found = true
				s.Require().NotNil(u.PreviousStatus)
				s.Equal(domain.SLAStatusAtRisk, *u.PreviousStatus)
				s.True(u.IsBreached)
				s.False(u.IsAtRisk)
			}
		}
		s.True(found)
	})
}

func (s *SweepServiceSuite) TestFailuresAreIsolated() {
	s.putCall("notify-fails", 70*time.Minute, true, nil)
	s.putCall("update-fails", 70*time.Minute, true, nil)
	s.putCall("ok", 70*time.Minute, true, nil)
	s.notifier.failFor["notify-fails"] = errors.New("smtp down")

	calls := &stubStore{
		MemoryRequestStore: s.stores[domain.RequestTypeCall],
		updateErr:          map[string]error{"update-fails": errors.New("deadlock")},
	}
	litigation := &stubStore{
		MemoryRequestStore: s.stores[domain.RequestTypeLitigation],
		listErr:            errors.New("db down"),
	}

	report, err := s.service(map[domain.RequestType]repository.RequestStore{
		domain.RequestTypeCall:       calls,
		domain.RequestTypeLitigation: litigation,
	}, nil, 0, 0).RunAt(s.ctx, s.now)
	s.Require().NoError(err)

	s.Equal(3, report.Checked)
	s.Equal(2, report.Updated, "notification failure keeps the persisted update")
	s.ElementsMatch([]string{
		"call:notify-fails: smtp down",
		"call:update-fails: deadlock",
		"litigation: db down",
	}, report.Errors)
	s.Equal(2, report.ByKind[domain.RequestTypeCall].Errors)
	s.Equal(1, report.ByKind[domain.RequestTypeLitigation].Errors)
	s.Equal(domain.SLAStatusBreached, *s.stores[domain.RequestTypeCall].Status("notify-fails"))
	s.Nil(s.stores[domain.RequestTypeCall].Status("update-fails"))
	s.Empty(report.Skipped)
}

func (s *SweepServiceSuite) TestSingleFlight() {
	blocking := &stubStore{
		MemoryRequestStore: s.stores[domain.RequestTypeService],
		block:              make(chan struct{}),
		entered:            make(chan struct{}),
	}
	svc := s.service(map[domain.RequestType]repository.RequestStore{domain.RequestTypeService: blocking}, nil, 0, 0)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(s.ctx)
		done <- err
	}()
	<-blocking.entered
	s.True(svc.Running())

	_, err := svc.Run(s.ctx)
	s.ErrorIs(err, ErrSweepInProgress)

	_, err = svc.ManualTrigger(s.ctx)
	s.Equal("SWEEP_IN_PROGRESS", domainCode(err))
	s.ErrorIs(err, ErrSweepInProgress)

	close(blocking.block)
	s.Require().NoError(<-done)
	s.False(svc.Running())

	_, err = svc.ManualTrigger(s.ctx)
	s.NoError(err)
}

func (s *SweepServiceSuite) TestTimeoutSkipsUnfinishedKinds() {
	s.putCall("late", 70*time.Minute, true, nil)
	blocking := &stubStore{
		MemoryRequestStore: s.stores[domain.RequestTypeConsultation],
		block:              make(chan struct{}),
	}
	svc := s.service(map[domain.RequestType]repository.RequestStore{domain.RequestTypeConsultation: blocking}, nil, 50*time.Millisecond, 1)

	report, err := svc.RunAt(s.ctx, s.now)
	s.Require().NoError(err)

	s.Empty(report.Errors, "a deadline is not an error")
	s.Contains(report.Skipped, domain.RequestTypeConsultation)
	s.True(report.ByKind[domain.RequestTypeConsultation].Skipped)
	s.Len(report.Skipped, len(domain.RequestTypes), "one worker never reaches the later kinds")
}

func (s *SweepServiceSuite) TestTimeoutDuringUpdateSkipsKind() {
	s.putCall("late", 70*time.Minute, true, nil)
	stalled := &stubStore{
		MemoryRequestStore: s.stores[domain.RequestTypeCall],
		stallUpdates:       true,
	}
	svc := s.service(map[domain.RequestType]repository.RequestStore{domain.RequestTypeCall: stalled}, nil, 50*time.Millisecond, len(domain.RequestTypes))

	report, err := svc.RunAt(s.ctx, s.now)
	s.Require().NoError(err)

	s.Empty(report.Errors, "a deadline is not an error")
	s.Contains(report.Skipped, domain.RequestTypeCall)
	s.True(report.ByKind[domain.RequestTypeCall].Skipped)
	s.Zero(report.ByKind[domain.RequestTypeCall].Updated)
	s.Nil(s.stores[domain.RequestTypeCall].Status("late"))
	s.Empty(s.notifier.breaches)
}

func (s *SweepServiceSuite) TestSweepUsesMatchingPolicyBudget() {
	policies := NewPolicyService(repository.NewMemoryPolicyRepository(), zap.NewNop())
	_, err := policies.Create(s.ctx, PolicyInput{
		Name:              "service-fast",
		RequestType:       domain.RequestTypeService,
		Priority:          domain.PriorityNormal,
		ResponseMinutes:   10,
		ResolutionMinutes: 100,
	})
	s.Require().NoError(err)
	s.policies = policies

	created := s.now.Add(-20 * time.Minute)
	s.stores[domain.RequestTypeService].Put(domain.RequestSLASnapshot{
		RequestID:   "svc-fast",
		RequestType: domain.RequestTypeService,
		Priority:    domain.PriorityNormal,
		CreatedAt:   created,
		SLADeadline: timePtr(created.Add(100 * time.Minute)),
	}, true)

	report, err := s.service(nil, nil, time.Second, 2).RunAt(s.ctx, s.now)
	s.Require().NoError(err)
	s.Empty(report.Errors)
	s.Equal(1, report.ByKind[domain.RequestTypeService].Breached)
	s.Equal(domain.SLAStatusBreached, *s.stores[domain.RequestTypeService].Status("svc-fast"))
}

func (s *SweepServiceSuite) TestDailyReport() {
	day := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	put := func(kind domain.RequestType, id string, created time.Time, status *domain.SLAStatus) {
		s.stores[kind].Put(domain.RequestSLASnapshot{RequestID: id, CreatedAt: created, CurrentStatus: status}, false)
	}
	put(domain.RequestTypeCall, "call-1", day.Add(time.Hour), statusPtr(domain.SLAStatusBreached))
	put(domain.RequestTypeCall, "call-2", day.Add(23*time.Hour), statusPtr(domain.SLAStatusAtRisk))
	put(domain.RequestTypeCall, "call-next-day", day.Add(24*time.Hour), statusPtr(domain.SLAStatusBreached))
	put(domain.RequestTypeService, "svc-1", day.Add(2*time.Hour), nil)
	put(domain.RequestTypeService, "svc-prev-day", day.Add(-time.Minute), nil)

	recipients := repository.NewStaticRecipientRepository([]string{"admin-1:one@example.com", "admin-2:two@example.com"})
	s.notifier.failFor["admin-2"] = errors.New("mailbox full")
	svc := s.service(nil, recipients, 0, 0)

	report, err := svc.RunDailyReportAt(s.ctx, day.Add(24*time.Hour+5*time.Minute))
	s.Require().NoError(err)

	s.Equal(day, report.ReportDate)
	s.Equal(domain.StatusCounts{Total: 3, Breached: 1, AtRisk: 1, OnTrack: 1}, report.Summary)
	s.Equal(domain.StatusCounts{Total: 2, Breached: 1, AtRisk: 1}, report.ByRequestType[domain.RequestTypeCall])
	s.Equal(domain.StatusCounts{Total: 1, OnTrack: 1}, report.ByRequestType[domain.RequestTypeService])
	s.Equal(domain.StatusCounts{}, report.ByRequestType[domain.RequestTypeLitigation])

	s.Equal(1, report.Recipients)
	s.Equal([]string{"recipient:admin-2: mailbox full"}, report.Errors)
	s.Require().Len(s.notifier.daily, 2)
	s.Equal(3, s.notifier.daily[0].Summary.TotalActive)
	s.Equal("one@example.com", s.notifier.daily[0].AdminEmail)

	stored, err := svc.DailyReport(s.ctx, day)
	s.Require().NoError(err)
	s.Equal(3, stored.Summary.Total)

	_, err = svc.DailyReport(s.ctx, day.AddDate(0, 0, -7))
	s.Equal("NOT_FOUND", domainCode(err))
}

func (s *SweepServiceSuite) TestLatestReportMissing() {
	_, err := s.service(nil, nil, 0, 0).LatestReport(s.ctx)
	s.Equal("NOT_FOUND", domainCode(err))
}
