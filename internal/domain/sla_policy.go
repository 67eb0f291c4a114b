package domain

import "time"

// SLAPolicy maps a (request type, priority) pair to a time budget.
type SLAPolicy struct {
	ID          string
	Name        string
	RequestType RequestType
	Priority    Priority
	Budget      TimeBudget
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SelectBestMatch picks the policy for requestType following the fallback chain:
// exact active (type, priority), then active (type, normal), then any active
// policy of the type with the lowest priority ordinal. It returns nil when
// nothing matches; callers then use the request type default budget.
func SelectBestMatch(policies []SLAPolicy, requestType RequestType, priority *Priority) *SLAPolicy {
	var normal, fallback *SLAPolicy
	for i := range policies {
		p := &policies[i]
		if !p.IsActive || p.RequestType != requestType {
			continue
		}
		if priority != nil && p.Priority == *priority {
			return p
		}
		if p.Priority == PriorityNormal && normal == nil {
			normal = p
		}
		if fallback == nil || p.Priority.Ordinal() < fallback.Priority.Ordinal() {
			fallback = p
		}
	}
	if normal != nil {
		return normal
	}
	return fallback
}
