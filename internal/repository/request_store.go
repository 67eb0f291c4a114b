package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
)

// RequestStore reads and writes the SLA projection of one request kind.
type RequestStore interface {
	Kind() domain.RequestType
	// ListActive returns requests in an active workflow status that carry an SLA deadline.
	ListActive(ctx context.Context) ([]domain.RequestSLASnapshot, error)
	UpdateStatus(ctx context.Context, id string, status domain.SLAStatus) error
	// ListCreatedBetween returns requests created in [from, to).
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.RequestSLASnapshot, error)
}

// RequestStoreRegistry resolves the store for each request kind.
type RequestStoreRegistry struct {
	stores map[domain.RequestType]RequestStore
}

// NewRequestStoreRegistry registers stores by their kind; later stores replace earlier ones.
func NewRequestStoreRegistry(stores ...RequestStore) *RequestStoreRegistry {
	reg := &RequestStoreRegistry{stores: make(map[domain.RequestType]RequestStore, len(stores))}
	for _, s := range stores {
		reg.stores[s.Kind()] = s
	}
	return reg
}

// Get returns the store for kind.
func (r *RequestStoreRegistry) Get(kind domain.RequestType) (RequestStore, bool) {
	s, ok := r.stores[kind]
	return s, ok
}

// Kinds lists registered kinds in domain order.
func (r *RequestStoreRegistry) Kinds() []domain.RequestType {
	kinds := make([]domain.RequestType, 0, len(r.stores))
	for _, k := range domain.RequestTypes {
		if _, ok := r.stores[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// requestTable maps a request kind onto its table; each bounded context names
// its columns differently.
type requestTable struct {
	kind            domain.RequestType
	table           string
	numberColumn    string
	providerColumn  string
	respondedColumn string
	resolvedColumn  string
	activeStatuses  []string
}

var requestTables = []requestTable{
	{
		kind:            domain.RequestTypeConsultation,
		table:           "consultations",
		numberColumn:    "consultation_number",
		providerColumn:  "assigned_lawyer_id",
		respondedColumn: "first_response_at",
		resolvedColumn:  "completed_at",
		activeStatuses:  []string{"pending", "assigned", "in_progress", "awaiting_client"},
	},
	{
		kind:            domain.RequestTypeLegalOpinion,
		table:           "legal_opinions",
		numberColumn:    "opinion_number",
		providerColumn:  "assigned_lawyer_id",
		respondedColumn: "first_response_at",
		resolvedColumn:  "delivered_at",
		activeStatuses:  []string{"submitted", "assigned", "researching", "drafting", "under_review"},
	},
	{
		kind:            domain.RequestTypeService,
		table:           "service_requests",
		numberColumn:    "request_number",
		providerColumn:  "provider_id",
		respondedColumn: "acknowledged_at",
		resolvedColumn:  "completed_at",
		activeStatuses:  []string{"new", "acknowledged", "in_progress", "on_hold"},
	},
	{
		kind:            domain.RequestTypeLitigation,
		table:           "litigation_cases",
		numberColumn:    "case_number",
		providerColumn:  "lawyer_id",
		respondedColumn: "first_response_at",
		resolvedColumn:  "closed_at",
		activeStatuses:  []string{"open", "filed", "in_court", "pending_judgment"},
	},
	{
		kind:            domain.RequestTypeCall,
		table:           "calls",
		numberColumn:    "call_number",
		providerColumn:  "consultant_id",
		respondedColumn: "answered_at",
		resolvedColumn:  "ended_at",
		activeStatuses:  []string{"scheduled", "ringing", "in_progress"},
	},
}

type requestStore struct {
	pool   *pgxpool.Pool
	def    requestTable
	logger *zap.Logger
}

// NewPostgresRequestStores builds one store per request kind over pool.
func NewPostgresRequestStores(pool *pgxpool.Pool, logger *zap.Logger) *RequestStoreRegistry {
	stores := make([]RequestStore, 0, len(requestTables))
	for _, def := range requestTables {
		stores = append(stores, &requestStore{pool: pool, def: def, logger: logger.With(zap.String("request_kind", string(def.kind)))})
	}
	return NewRequestStoreRegistry(stores...)
}

func (s *requestStore) Kind() domain.RequestType {
	return s.def.kind
}

func (s *requestStore) selectColumns() string {
	return fmt.Sprintf(`id::text, %s, priority, created_at, %s, %s, sla_deadline, response_deadline, escalation_deadline, sla_status, subscriber_id, %s`,
		s.def.numberColumn, s.def.respondedColumn, s.def.resolvedColumn, s.def.providerColumn)
}

func (s *requestStore) ListActive(ctx context.Context) ([]domain.RequestSLASnapshot, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE status = ANY($1) AND sla_deadline IS NOT NULL
        ORDER BY sla_deadline`, s.selectColumns(), s.def.table)
	return s.query(ctx, query, s.def.activeStatuses)
}

func (s *requestStore) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.RequestSLASnapshot, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE created_at >= $1 AND created_at < $2
        ORDER BY created_at`, s.selectColumns(), s.def.table)
	return s.query(ctx, query, from, to)
}

func (s *requestStore) UpdateStatus(ctx context.Context, id string, status domain.SLAStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET sla_status=$1 WHERE id=$2`, s.def.table)
	cmd, err := s.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *requestStore) query(ctx context.Context, query string, args ...any) ([]domain.RequestSLASnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.def.table, err)
	}
	defer rows.Close()

	var result []domain.RequestSLASnapshot
	for rows.Next() {
		var (
			snap      domain.RequestSLASnapshot
			priority  string
			slaStatus *string
		)
		if err := rows.Scan(
			&snap.RequestID,
			&snap.RequestNumber,
			&priority,
			&snap.CreatedAt,
			&snap.RespondedAt,
			&snap.ResolvedAt,
			&snap.SLADeadline,
			&snap.ResponseDeadline,
			&snap.EscalationDeadline,
			&slaStatus,
			&snap.SubscriberID,
			&snap.ProviderID,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.def.table, err)
		}
		snap.RequestType = s.def.kind
		snap.Priority = s.normalizePriority(snap.RequestID, priority)
		snap.CurrentStatus = s.normalizeStatus(snap.RequestID, slaStatus)
		result = append(result, snap)
	}
	return result, rows.Err()
}

// normalizePriority keeps malformed rows sweepable by defaulting to normal.
func (s *requestStore) normalizePriority(id, raw string) domain.Priority {
	p, ok := domain.PriorityOrDefault(raw)
	if !ok {
		s.logger.Warn("unknown priority; defaulting to normal", zap.String("request_id", id), zap.String("priority", raw))
	}
	return p
}

// normalizeStatus drops an unknown persisted status so the sweep rewrites it.
func (s *requestStore) normalizeStatus(id string, raw *string) *domain.SLAStatus {
	if raw == nil {
		return nil
	}
	status, err := domain.ParseSLAStatus(*raw)
	if err != nil {
		s.logger.Warn("unknown sla status; treating as unset", zap.String("request_id", id), zap.String("sla_status", *raw))
		return nil
	}
	return &status
}
