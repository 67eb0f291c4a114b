package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
	apperrors "github.com/spec-kit/sla-service/pkg/util/errorutil"
)

const uniqueViolation = "23505"

// ExistsOptions narrows uniqueness checks.
type ExistsOptions struct {
	ActiveOnly bool
	// ExcludeID skips the policy being updated.
	ExcludeID string
}

// PolicyRepository manages SLA policy persistence.
type PolicyRepository interface {
	// FindBestMatch returns nil, nil when no policy applies.
	FindBestMatch(ctx context.Context, requestType domain.RequestType, priority *domain.Priority) (*domain.SLAPolicy, error)
	FindByID(ctx context.Context, id string) (*domain.SLAPolicy, error)
	FindByName(ctx context.Context, name string) (*domain.SLAPolicy, error)
	// Save inserts when ID is empty, otherwise updates.
	Save(ctx context.Context, policy *domain.SLAPolicy) error
	Delete(ctx context.Context, id string) error
	ExistsByName(ctx context.Context, name string, opts ExistsOptions) (bool, error)
	ExistsByTypeAndPriority(ctx context.Context, requestType domain.RequestType, priority domain.Priority, opts ExistsOptions) (bool, error)
	FindAllActive(ctx context.Context) ([]domain.SLAPolicy, error)
	FindByRequestType(ctx context.Context, requestType domain.RequestType) ([]domain.SLAPolicy, error)
	List(ctx context.Context) ([]domain.SLAPolicy, error)
}

const policyColumns = `id::text, name, request_type, priority, response_minutes, resolution_minutes, escalation_minutes, is_active, created_at, updated_at`

type policyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository builds the postgres-backed repository.
func NewPolicyRepository(pool *pgxpool.Pool) PolicyRepository {
	return &policyRepository{pool: pool}
}

func (r *policyRepository) FindBestMatch(ctx context.Context, requestType domain.RequestType, priority *domain.Priority) (*domain.SLAPolicy, error) {
	const query = `
        SELECT ` + policyColumns + `
        FROM sla_policies WHERE request_type=$1 AND is_active = TRUE
        ORDER BY created_at`
	policies, err := r.query(ctx, query, requestType)
	if err != nil {
		return nil, err
	}
	match := domain.SelectBestMatch(policies, requestType, priority)
	if match == nil {
		return nil, nil
	}
	found := *match
	return &found, nil
}

func (r *policyRepository) FindByID(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	const query = `SELECT ` + policyColumns + ` FROM sla_policies WHERE id=$1`
	return scanPolicy(r.pool.QueryRow(ctx, query, id))
}

func (r *policyRepository) FindByName(ctx context.Context, name string) (*domain.SLAPolicy, error) {
	const query = `SELECT ` + policyColumns + ` FROM sla_policies WHERE name=$1`
	return scanPolicy(r.pool.QueryRow(ctx, query, name))
}

func (r *policyRepository) Save(ctx context.Context, policy *domain.SLAPolicy) error {
	if policy.ID == "" {
		const query = `
        INSERT INTO sla_policies (name, request_type, priority, response_minutes, resolution_minutes, escalation_minutes, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id::text, created_at, updated_at`
		err := r.pool.QueryRow(ctx, query,
			policy.Name,
			policy.RequestType,
			policy.Priority,
			policy.Budget.ResponseMinutes(),
			policy.Budget.ResolutionMinutes(),
			policy.Budget.EscalationMinutes(),
			policy.IsActive,
		).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
		return mapWriteError(err, policy)
	}

	const query = `
        UPDATE sla_policies
        SET name=$1, request_type=$2, priority=$3, response_minutes=$4, resolution_minutes=$5, escalation_minutes=$6, is_active=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		policy.Name,
		policy.RequestType,
		policy.Priority,
		policy.Budget.ResponseMinutes(),
		policy.Budget.ResolutionMinutes(),
		policy.Budget.EscalationMinutes(),
		policy.IsActive,
		policy.ID,
	).Scan(&policy.UpdatedAt)
	return mapWriteError(err, policy)
}

// mapWriteError turns unique index violations from concurrent writers into conflicts.
func mapWriteError(err error, policy *domain.SLAPolicy) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperrors.NewConflict("sla policy conflicts with an existing policy", map[string]any{
			"name":         policy.Name,
			"request_type": policy.RequestType,
			"priority":     policy.Priority,
			"constraint":   pgErr.ConstraintName,
		})
	}
	return err
}

func (r *policyRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sla_policies WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *policyRepository) ExistsByName(ctx context.Context, name string, opts ExistsOptions) (bool, error) {
	const query = `
        SELECT EXISTS(
            SELECT 1 FROM sla_policies
            WHERE name=$1 AND ($2 = FALSE OR is_active) AND ($3 = '' OR id::text <> $3)
        )`
	var exists bool
	err := r.pool.QueryRow(ctx, query, name, opts.ActiveOnly, opts.ExcludeID).Scan(&exists)
	return exists, err
}

func (r *policyRepository) ExistsByTypeAndPriority(ctx context.Context, requestType domain.RequestType, priority domain.Priority, opts ExistsOptions) (bool, error) {
	const query = `
        SELECT EXISTS(
            SELECT 1 FROM sla_policies
            WHERE request_type=$1 AND priority=$2 AND ($3 = FALSE OR is_active) AND ($4 = '' OR id::text <> $4)
        )`
	var exists bool
	err := r.pool.QueryRow(ctx, query, requestType, priority, opts.ActiveOnly, opts.ExcludeID).Scan(&exists)
	return exists, err
}

func (r *policyRepository) FindAllActive(ctx context.Context) ([]domain.SLAPolicy, error) {
	const query = `SELECT ` + policyColumns + ` FROM sla_policies WHERE is_active = TRUE ORDER BY request_type, priority`
	return r.query(ctx, query)
}

func (r *policyRepository) FindByRequestType(ctx context.Context, requestType domain.RequestType) ([]domain.SLAPolicy, error) {
	const query = `SELECT ` + policyColumns + ` FROM sla_policies WHERE request_type=$1 ORDER BY created_at`
	return r.query(ctx, query, requestType)
}

func (r *policyRepository) List(ctx context.Context) ([]domain.SLAPolicy, error) {
	const query = `SELECT ` + policyColumns + ` FROM sla_policies ORDER BY request_type, created_at`
	return r.query(ctx, query)
}

func (r *policyRepository) query(ctx context.Context, query string, args ...any) ([]domain.SLAPolicy, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *policy)
	}
	return result, rows.Err()
}

func scanPolicy(row pgx.Row) (*domain.SLAPolicy, error) {
	var (
		policy                domain.SLAPolicy
		requestType, priority string
		response, resolution  int
		escalation            *int
	)
	if err := row.Scan(
		&policy.ID,
		&policy.Name,
		&requestType,
		&priority,
		&response,
		&resolution,
		&escalation,
		&policy.IsActive,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if policy.RequestType, err = domain.ParseRequestType(requestType); err != nil {
		return nil, fmt.Errorf("policy %s: %w", policy.ID, err)
	}
	if policy.Priority, err = domain.ParsePriority(priority); err != nil {
		return nil, fmt.Errorf("policy %s: %w", policy.ID, err)
	}
	if policy.Budget, err = domain.NewTimeBudget(response, resolution, escalation); err != nil {
		return nil, fmt.Errorf("policy %s: %w", policy.ID, err)
	}
	return &policy, nil
}
