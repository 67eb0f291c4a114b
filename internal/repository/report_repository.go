package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/sla-service/internal/domain"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

const (
	latestSweepKey     = "sla:sweep:latest"
	dailyReportKeyBase = "sla:report:daily:"
	reportDateLayout   = "2006-01-02"
)

// ReportRepository stores sweep and daily report results.
type ReportRepository interface {
	SaveSweep(ctx context.Context, report *domain.SweepReport) error
	LatestSweep(ctx context.Context) (*domain.SweepReport, error)
	SaveDaily(ctx context.Context, report *domain.DailyReport) error
	FindDaily(ctx context.Context, date time.Time) (*domain.DailyReport, error)
}

type redisReportRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReportRepository stores reports as JSON values that expire after ttl.
func NewRedisReportRepository(client *redis.Client, ttl time.Duration) ReportRepository {
	return &redisReportRepository{client: client, ttl: ttl}
}

func dailyReportKey(date time.Time) string {
	return dailyReportKeyBase + date.UTC().Format(reportDateLayout)
}

func (r *redisReportRepository) SaveSweep(ctx context.Context, report *domain.SweepReport) error {
	return r.set(ctx, latestSweepKey, report)
}

func (r *redisReportRepository) LatestSweep(ctx context.Context) (*domain.SweepReport, error) {
	var report domain.SweepReport
	if err := r.get(ctx, latestSweepKey, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *redisReportRepository) SaveDaily(ctx context.Context, report *domain.DailyReport) error {
	return r.set(ctx, dailyReportKey(report.ReportDate), report)
}

func (r *redisReportRepository) FindDaily(ctx context.Context, date time.Time) (*domain.DailyReport, error) {
	var report domain.DailyReport
	if err := r.get(ctx, dailyReportKey(date), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *redisReportRepository) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, payload, r.ttl).Err()
}

func (r *redisReportRepository) get(ctx context.Context, key string, dest any) error {
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// MemoryReportRepository keeps the latest sweep and daily reports in memory.
type MemoryReportRepository struct {
	mu     sync.RWMutex
	latest *domain.SweepReport
	daily  map[string]domain.DailyReport
}

// NewMemoryReportRepository creates an empty repository.
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{daily: make(map[string]domain.DailyReport)}
}

func (r *MemoryReportRepository) SaveSweep(_ context.Context, report *domain.SweepReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *report
	r.latest = &cp
	return nil
}

func (r *MemoryReportRepository) LatestSweep(_ context.Context) (*domain.SweepReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *r.latest
	return &cp, nil
}

func (r *MemoryReportRepository) SaveDaily(_ context.Context, report *domain.DailyReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.daily[dailyReportKey(report.ReportDate)] = *report
	return nil
}

func (r *MemoryReportRepository) FindDaily(_ context.Context, date time.Time) (*domain.DailyReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.daily[dailyReportKey(date)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &report, nil
}
