package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// RecipientRepository lists administrators who receive the daily report.
type RecipientRepository interface {
	ListReportRecipients(ctx context.Context) ([]domain.ReportRecipient, error)
}

type recipientRepository struct {
	pool *pgxpool.Pool
}

// NewRecipientRepository reads active admins from staff_members.
func NewRecipientRepository(pool *pgxpool.Pool) RecipientRepository {
	return &recipientRepository{pool: pool}
}

func (r *recipientRepository) ListReportRecipients(ctx context.Context) ([]domain.ReportRecipient, error) {
	const query = `
        SELECT id::text, email, full_name
        FROM staff_members
        WHERE role = 'ADMIN' AND is_active = TRUE
        ORDER BY email`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ReportRecipient
	for rows.Next() {
		var rec domain.ReportRecipient
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.Name); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// StaticRecipientRepository serves a fixed recipient list.
type StaticRecipientRepository struct {
	recipients []domain.ReportRecipient
}

// NewStaticRecipientRepository parses entries of the form "id:email" or "email".
func NewStaticRecipientRepository(entries []string) *StaticRecipientRepository {
	repo := &StaticRecipientRepository{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rec := domain.ReportRecipient{ID: entry, Email: entry}
		if id, email, ok := strings.Cut(entry, ":"); ok {
			rec.ID = strings.TrimSpace(id)
			rec.Email = strings.TrimSpace(email)
		}
		rec.Name = rec.Email
		repo.recipients = append(repo.recipients, rec)
	}
	return repo
}

func (r *StaticRecipientRepository) ListReportRecipients(_ context.Context) ([]domain.ReportRecipient, error) {
	out := make([]domain.ReportRecipient, len(r.recipients))
	copy(out, r.recipients)
	return out, nil
}
