package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

type memoryRequest struct {
	snapshot domain.RequestSLASnapshot
	active   bool
}

// MemoryRequestStore is an in-process RequestStore for one request kind.
type MemoryRequestStore struct {
	mu    sync.RWMutex
	kind  domain.RequestType
	order []string
	items map[string]*memoryRequest
}

// NewMemoryRequestStore creates an empty store for kind.
func NewMemoryRequestStore(kind domain.RequestType) *MemoryRequestStore {
	return &MemoryRequestStore{kind: kind, items: make(map[string]*memoryRequest)}
}

// NewMemoryRequestStores builds an in-memory registry covering every request kind.
func NewMemoryRequestStores() (*RequestStoreRegistry, map[domain.RequestType]*MemoryRequestStore) {
	byKind := make(map[domain.RequestType]*MemoryRequestStore, len(domain.RequestTypes))
	stores := make([]RequestStore, 0, len(domain.RequestTypes))
	for _, kind := range domain.RequestTypes {
		s := NewMemoryRequestStore(kind)
		byKind[kind] = s
		stores = append(stores, s)
	}
	return NewRequestStoreRegistry(stores...), byKind
}

// Put inserts or replaces a request; active controls ListActive visibility.
func (s *MemoryRequestStore) Put(snapshot domain.RequestSLASnapshot, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot.RequestType = s.kind
	if _, ok := s.items[snapshot.RequestID]; !ok {
		s.order = append(s.order, snapshot.RequestID)
	}
	s.items[snapshot.RequestID] = &memoryRequest{snapshot: snapshot, active: active}
}

// Status returns the persisted status for id.
func (s *MemoryRequestStore) Status(id string) *domain.SLAStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok || item.snapshot.CurrentStatus == nil {
		return nil
	}
	status := *item.snapshot.CurrentStatus
	return &status
}

func (s *MemoryRequestStore) Kind() domain.RequestType {
	return s.kind
}

func (s *MemoryRequestStore) ListActive(_ context.Context) ([]domain.RequestSLASnapshot, error) {
	return s.collect(func(item *memoryRequest) bool {
		return item.active && item.snapshot.SLADeadline != nil
	}), nil
}

func (s *MemoryRequestStore) ListCreatedBetween(_ context.Context, from, to time.Time) ([]domain.RequestSLASnapshot, error) {
	return s.collect(func(item *memoryRequest) bool {
		created := item.snapshot.CreatedAt
		return !created.Before(from) && created.Before(to)
	}), nil
}

func (s *MemoryRequestStore) UpdateStatus(_ context.Context, id string, status domain.SLAStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	item.snapshot.CurrentStatus = &status
	return nil
}

func (s *MemoryRequestStore) collect(keep func(*memoryRequest) bool) []domain.RequestSLASnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RequestSLASnapshot
	for _, id := range s.order {
		item := s.items[id]
		if keep(item) {
			out = append(out, item.snapshot)
		}
	}
	return out
}
