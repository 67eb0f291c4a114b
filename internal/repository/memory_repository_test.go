package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/domain"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

func mustBudget(t *testing.T, response, resolution int) domain.TimeBudget {
	t.Helper()
	b, err := domain.NewTimeBudget(response, resolution, nil)
	require.NoError(t, err)
	return b
}

func TestMemoryPolicyRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPolicyRepository()

	policy := &domain.SLAPolicy{
		Name:        "consultation-high",
		RequestType: domain.RequestTypeConsultation,
		Priority:    domain.PriorityHigh,
		Budget:      mustBudget(t, 60, 1440),
		IsActive:    true,
	}
	require.NoError(t, repo.Save(ctx, policy))
	require.NotEmpty(t, policy.ID)

	byID, err := repo.FindByID(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, "consultation-high", byID.Name)

	byName, err := repo.FindByName(ctx, "consultation-high")
	require.NoError(t, err)
	assert.Equal(t, policy.ID, byName.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	exists, err := repo.ExistsByName(ctx, "consultation-high", ExistsOptions{ExcludeID: policy.ID})
	require.NoError(t, err)
	assert.False(t, exists, "the policy itself is excluded")

	exists, err = repo.ExistsByTypeAndPriority(ctx, domain.RequestTypeConsultation, domain.PriorityHigh, ExistsOptions{ActiveOnly: true})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryPolicyRepository_FindBestMatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPolicyRepository()

	normal := &domain.SLAPolicy{Name: "service-normal", RequestType: domain.RequestTypeService, Priority: domain.PriorityNormal, Budget: mustBudget(t, 60, 1440), IsActive: true}
	urgent := &domain.SLAPolicy{Name: "service-urgent", RequestType: domain.RequestTypeService, Priority: domain.PriorityUrgent, Budget: mustBudget(t, 15, 240), IsActive: false}
	require.NoError(t, repo.Save(ctx, normal))
	require.NoError(t, repo.Save(ctx, urgent))

	p := domain.PriorityUrgent
	match, err := repo.FindBestMatch(ctx, domain.RequestTypeService, &p)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, normal.ID, match.ID, "inactive exact match falls back to normal")

	match, err = repo.FindBestMatch(ctx, domain.RequestTypeCall, nil)
	require.NoError(t, err)
	assert.Nil(t, match)

	active, err := repo.FindAllActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, repo.Delete(ctx, urgent.ID))
	assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, urgent.ID)))
}

func TestMemoryRequestStore_ListAndUpdate(t *testing.T) {
	ctx := context.Background()
	registry, stores := NewMemoryRequestStores()
	assert.Equal(t, domain.RequestTypes, registry.Kinds())

	created := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	deadline := created.Add(48 * time.Hour)
	store := stores[domain.RequestTypeConsultation]
	store.Put(domain.RequestSLASnapshot{RequestID: "c-1", RequestNumber: "CONS-1", CreatedAt: created, SLADeadline: &deadline}, true)
	store.Put(domain.RequestSLASnapshot{RequestID: "c-2", RequestNumber: "CONS-2", CreatedAt: created.Add(24 * time.Hour)}, true)
	store.Put(domain.RequestSLASnapshot{RequestID: "c-3", RequestNumber: "CONS-3", CreatedAt: created, SLADeadline: &deadline}, false)

	got, ok := registry.Get(domain.RequestTypeConsultation)
	require.True(t, ok)

	active, err := got.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1, "requires active flag and a deadline")
	assert.Equal(t, "c-1", active[0].RequestID)
	assert.Equal(t, domain.RequestTypeConsultation, active[0].RequestType)

	day, err := got.ListCreatedBetween(ctx, created, created.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, day, 2, "upper bound is exclusive")

	require.NoError(t, got.UpdateStatus(ctx, "c-1", domain.SLAStatusBreached))
	require.NotNil(t, store.Status("c-1"))
	assert.Equal(t, domain.SLAStatusBreached, *store.Status("c-1"))
	assert.True(t, apperrors.IsNotFound(got.UpdateStatus(ctx, "missing", domain.SLAStatusOnTrack)))
}

func TestStaticRecipientRepository(t *testing.T) {
	repo := NewStaticRecipientRepository([]string{"a1:admin@example.com", " ops@example.com ", ""})
	recipients, err := repo.ListReportRecipients(context.Background())
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	assert.Equal(t, "a1", recipients[0].ID)
	assert.Equal(t, "admin@example.com", recipients[0].Email)
	assert.Equal(t, "ops@example.com", recipients[1].ID)
}

func TestMemoryReportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReportRepository()

	_, err := repo.LatestSweep(ctx)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, repo.SaveSweep(ctx, &domain.SweepReport{ID: "run-1", Checked: 3}))
	latest, err := repo.LatestSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.ID)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveDaily(ctx, &domain.DailyReport{ReportDate: day, Summary: domain.StatusCounts{Total: 4}}))
	report, err := repo.FindDaily(ctx, day.Add(13*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Summary.Total)

	_, err = repo.FindDaily(ctx, day.AddDate(0, 0, 1))
	assert.True(t, apperrors.IsNotFound(err))
}
