package service

import (
	"context"

	"github.com/spec-kit/sla-service/internal/domain"
)

// PolicyMatcher resolves the policy that governs a request; PolicyService implements it.
type PolicyMatcher interface {
	FindBestMatch(ctx context.Context, requestType domain.RequestType, priority *domain.Priority) (*domain.SLAPolicy, error)
}

type policyKey struct {
	requestType domain.RequestType
	priority    domain.Priority
}

// policyCache memoizes best-match lookups for one batch of requests. It is not
// safe for concurrent use. A nil matcher always yields the type default.
type policyCache struct {
	matcher PolicyMatcher
	entries map[policyKey]*domain.SLAPolicy
}

func newPolicyCache(matcher PolicyMatcher) *policyCache {
	return &policyCache{matcher: matcher, entries: make(map[policyKey]*domain.SLAPolicy)}
}

func (c *policyCache) lookup(ctx context.Context, requestType domain.RequestType, priority domain.Priority) (*domain.SLAPolicy, error) {
	if c.matcher == nil {
		return nil, nil
	}
	key := policyKey{requestType: requestType, priority: priority}
	if policy, ok := c.entries[key]; ok {
		return policy, nil
	}
	policy, err := c.matcher.FindBestMatch(ctx, requestType, &priority)
	if err != nil {
		return nil, err
	}
	c.entries[key] = policy
	return policy, nil
}
