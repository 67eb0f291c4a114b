package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sla-service/internal/domain"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

// MemoryPolicyRepository keeps policies in process memory. It backs tests and
// deployments without a database.
type MemoryPolicyRepository struct {
	mu       sync.RWMutex
	policies map[string]domain.SLAPolicy
	now      func() time.Time
}

// NewMemoryPolicyRepository creates an empty repository.
func NewMemoryPolicyRepository() *MemoryPolicyRepository {
	return &MemoryPolicyRepository{
		policies: make(map[string]domain.SLAPolicy),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryPolicyRepository) FindBestMatch(_ context.Context, requestType domain.RequestType, priority *domain.Priority) (*domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	match := domain.SelectBestMatch(r.sorted(nil), requestType, priority)
	if match == nil {
		return nil, nil
	}
	found := *match
	return &found, nil
}

func (r *MemoryPolicyRepository) FindByID(_ context.Context, id string) (*domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (r *MemoryPolicyRepository) FindByName(_ context.Context, name string) (*domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.policies {
		if p.Name == name {
			found := p
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *MemoryPolicyRepository) Save(_ context.Context, policy *domain.SLAPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if policy.ID == "" {
		policy.ID = uuid.NewString()
		policy.CreatedAt = now
	} else {
		existing, ok := r.policies[policy.ID]
		if !ok {
			return apperrors.ErrNotFound
		}
		policy.CreatedAt = existing.CreatedAt
	}
	policy.UpdatedAt = now
	r.policies[policy.ID] = *policy
	return nil
}

func (r *MemoryPolicyRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.policies, id)
	return nil
}

func (r *MemoryPolicyRepository) ExistsByName(_ context.Context, name string, opts ExistsOptions) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.policies {
		if p.Name == name && matchesOpts(p, opts) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryPolicyRepository) ExistsByTypeAndPriority(_ context.Context, requestType domain.RequestType, priority domain.Priority, opts ExistsOptions) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.policies {
		if p.RequestType == requestType && p.Priority == priority && matchesOpts(p, opts) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryPolicyRepository) FindAllActive(_ context.Context) ([]domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(p domain.SLAPolicy) bool { return p.IsActive }), nil
}

func (r *MemoryPolicyRepository) FindByRequestType(_ context.Context, requestType domain.RequestType) ([]domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(p domain.SLAPolicy) bool { return p.RequestType == requestType }), nil
}

func (r *MemoryPolicyRepository) List(_ context.Context) ([]domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(nil), nil
}

// sorted returns matching policies by creation time then id; callers hold the lock.
func (r *MemoryPolicyRepository) sorted(keep func(domain.SLAPolicy) bool) []domain.SLAPolicy {
	out := make([]domain.SLAPolicy, 0, len(r.policies))
	for _, p := range r.policies {
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matchesOpts(p domain.SLAPolicy, opts ExistsOptions) bool {
	if opts.ActiveOnly && !p.IsActive {
		return false
	}
	return opts.ExcludeID == "" || p.ID != opts.ExcludeID
}
