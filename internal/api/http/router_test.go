package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-service/internal/auth"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/service"
	"github.com/spec-kit/sla-service/internal/sla"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type RouterSuite struct {
	suite.Suite
	app        *fiber.App
	tokens     *auth.TokenManager
	stores     map[domain.RequestType]*repository.MemoryRequestStore
	adminToken string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := zap.NewNop()
	registry, stores := repository.NewMemoryRequestStores()
	s.stores = stores

	notifications := service.NewNotificationService(events.NewInMemoryDispatcher(), logger, config.NotificationConfig{}, nil)
	notifications.RegisterHandlers()

	policies := service.NewPolicyService(repository.NewMemoryPolicyRepository(), logger)
	slaService := service.NewSLAService(policies, sla.NewEngine(nil), logger)
	sweeps := service.NewSweepService(service.SweepDependencies{
		Stores:     registry,
		Reports:    repository.NewMemoryReportRepository(),
		Recipients: repository.NewStaticRecipientRepository([]string{"admin-1:ops@example.com"}),
		Notifier:   notifications,
		Logger:     logger,
	})

	s.tokens = auth.NewTokenManager("test-secret", "sla-service", time.Hour)
	token, _, err := s.tokens.IssueToken("admin-1", domain.RoleAdmin)
	s.Require().NoError(err)
	s.adminToken = token

	s.app = fiber.New()
	RegisterMiddlewares(s.app, logger, nil, 5*time.Second)
	RegisterRoutes(s.app, RouteConfig{
		Health:         handlers.NewHealthHandler("sla-service", "test", nil),
		SLA:            handlers.NewSLAHandler(slaService),
		Policies:       handlers.NewPoliciesHandler(policies),
		Sweeps:         handlers.NewSweepsHandler(sweeps),
		AuthMiddleware: auth.NewAuthMiddleware(s.tokens),
		Metrics:        http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
	})
}

func (s *RouterSuite) do(method, path string, body any, token string) (int, envelope) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env
}

func (s *RouterSuite) TestHealthAndMetrics() {
	status, _ := s.do(http.MethodGet, "/health/live", nil, "")
	s.Equal(http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/health/ready", nil, "")
	s.Equal(http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/metrics", nil, "")
	s.Equal(http.StatusOK, status)
}

func (s *RouterSuite) TestUnknownRouteUsesErrorEnvelope() {
	status, env := s.do(http.MethodGet, "/nope", nil, "")
	s.Equal(http.StatusNotFound, status)
	s.Require().NotNil(env.Error)
	s.Equal("NOT_FOUND", env.Error.Code)
}

func (s *RouterSuite) TestDeadlinesFallBackToDefaultBudget() {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	status, env := s.do(http.MethodPost, "/sla/deadlines", map[string]any{
		"request_type": "consultation",
		"priority":     "normal",
		"start":        start,
	}, "")
	s.Require().Equal(http.StatusOK, status)

	var got struct {
		PolicyID           *string    `json:"policy_id"`
		ResponseDeadline   time.Time  `json:"response_deadline"`
		ResolutionDeadline time.Time  `json:"resolution_deadline"`
		EscalationDeadline *time.Time `json:"escalation_deadline"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &got))
	s.Nil(got.PolicyID)
	s.True(start.Add(2 * time.Hour).Equal(got.ResponseDeadline))
	s.True(start.Add(48 * time.Hour).Equal(got.ResolutionDeadline))
	s.Require().NotNil(got.EscalationDeadline)
	s.True(start.Add(24 * time.Hour).Equal(*got.EscalationDeadline))
}

func (s *RouterSuite) TestDeadlinesUseCreatedPolicy() {
	status, env := s.do(http.MethodPost, "/admin/sla/policies", map[string]any{
		"name":               "calls-urgent",
		"request_type":       "call",
		"priority":           "urgent",
		"response_minutes":   5,
		"resolution_minutes": 30,
	}, s.adminToken)
	s.Require().Equal(http.StatusCreated, status)
	var created struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &created))

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	status, env = s.do(http.MethodPost, "/sla/deadlines", map[string]any{
		"request_type": "call",
		"priority":     "urgent",
		"start":        start,
	}, "")
	s.Require().Equal(http.StatusOK, status)

	var got struct {
		PolicyID         *string   `json:"policy_id"`
		ResponseDeadline time.Time `json:"response_deadline"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &got))
	s.Require().NotNil(got.PolicyID)
	s.Equal(created.ID, *got.PolicyID)
	s.True(start.Add(5 * time.Minute).Equal(got.ResponseDeadline))
}

func (s *RouterSuite) TestStatusRequiresCreatedAt() {
	status, env := s.do(http.MethodPost, "/sla/status", map[string]any{
		"request_id":   "r-1",
		"request_type": "service",
	}, "")
	s.Equal(http.StatusBadRequest, status)
	s.Require().NotNil(env.Error)
	s.Equal("VALIDATION_FAILED", env.Error.Code)
}

func (s *RouterSuite) TestBreachesReportOverdueResponse() {
	created := time.Now().UTC().Add(-3 * time.Hour)
	status, env := s.do(http.MethodPost, "/sla/breaches", map[string]any{
		"request_id":   "r-1",
		"request_type": "service",
		"priority":     "normal",
		"created_at":   created,
	}, "")
	s.Require().Equal(http.StatusOK, status)

	var breaches []struct {
		Dimension string `json:"dimension"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &breaches))
	s.Require().Len(breaches, 1)
	s.Equal("response", breaches[0].Dimension)
}

func (s *RouterSuite) TestUrgencyOrdersMostUrgentFirst() {
	now := time.Now().UTC()
	status, env := s.do(http.MethodPost, "/sla/urgency", map[string]any{
		"items": []map[string]any{
			{"request_id": "fresh", "request_type": "litigation", "priority": "low", "created_at": now},
			{"request_id": "late", "request_type": "call", "priority": "urgent", "created_at": now.Add(-2 * time.Hour)},
		},
	}, "")
	s.Require().Equal(http.StatusOK, status)

	var got struct {
		RequestIDs []string `json:"request_ids"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &got))
	s.Equal([]string{"late", "fresh"}, got.RequestIDs)
}

func (s *RouterSuite) TestUrgencyRequiresCreatedAtPerItem() {
	status, env := s.do(http.MethodPost, "/sla/urgency", map[string]any{
		"items": []map[string]any{
			{"request_id": "ok", "request_type": "call", "priority": "normal", "created_at": time.Now().UTC()},
			{"request_id": "undated", "request_type": "call", "priority": "urgent"},
		},
	}, "")
	s.Equal(http.StatusBadRequest, status)
	s.Require().NotNil(env.Error)
	s.Equal("VALIDATION_FAILED", env.Error.Code)
	s.Equal("created_at", env.Error.Details["field"])
	s.EqualValues(1, env.Error.Details["index"])
}

func (s *RouterSuite) TestAdminRoutesRequireAdmin() {
	status, env := s.do(http.MethodGet, "/admin/sla/policies", nil, "")
	s.Equal(http.StatusUnauthorized, status)
	s.Require().NotNil(env.Error)
	s.Equal("UNAUTHORIZED", env.Error.Code)

	operator, _, err := s.tokens.IssueToken("op-1", domain.RoleOperator)
	s.Require().NoError(err)
	status, env = s.do(http.MethodGet, "/admin/sla/policies", nil, operator)
	s.Equal(http.StatusForbidden, status)
	s.Require().NotNil(env.Error)
	s.Equal("FORBIDDEN", env.Error.Code)
}

func (s *RouterSuite) TestPolicyLifecycle() {
	body := map[string]any{
		"name":               "legal-high",
		"request_type":       "legal_opinion",
		"priority":           "high",
		"response_minutes":   120,
		"resolution_minutes": 2880,
	}
	status, env := s.do(http.MethodPost, "/admin/sla/policies", body, s.adminToken)
	s.Require().Equal(http.StatusCreated, status)
	var created struct {
		ID       string `json:"id"`
		Budget   string `json:"budget"`
		IsActive bool   `json:"is_active"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &created))
	s.True(created.IsActive)
	s.NotEmpty(created.Budget)

	status, env = s.do(http.MethodPost, "/admin/sla/policies", body, s.adminToken)
	s.Equal(http.StatusConflict, status)
	s.Require().NotNil(env.Error)
	s.Equal("CONFLICT", env.Error.Code)

	status, _ = s.do(http.MethodPost, "/admin/sla/policies/"+created.ID+"/deactivate", nil, s.adminToken)
	s.Equal(http.StatusOK, status)

	status, env = s.do(http.MethodGet, "/admin/sla/policies/"+created.ID, nil, s.adminToken)
	s.Require().Equal(http.StatusOK, status)
	var fetched struct {
		IsActive bool `json:"is_active"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &fetched))
	s.False(fetched.IsActive)

	status, env = s.do(http.MethodGet, "/admin/sla/policies?request_type=legal_opinion", nil, s.adminToken)
	s.Require().Equal(http.StatusOK, status)
	var listed []json.RawMessage
	s.Require().NoError(json.Unmarshal(env.Data, &listed))
	s.Len(listed, 1)

	status, _ = s.do(http.MethodDelete, "/admin/sla/policies/"+created.ID, nil, s.adminToken)
	s.Equal(http.StatusNoContent, status)

	status, env = s.do(http.MethodGet, "/admin/sla/policies/"+created.ID, nil, s.adminToken)
	s.Equal(http.StatusNotFound, status)
	s.Require().NotNil(env.Error)
	s.Equal("NOT_FOUND", env.Error.Code)
}

func (s *RouterSuite) TestPolicyRejectsUnknownRequestType() {
	status, env := s.do(http.MethodPost, "/admin/sla/policies", map[string]any{
		"name":               "bogus",
		"request_type":       "ticket",
		"priority":           "normal",
		"response_minutes":   10,
		"resolution_minutes": 20,
	}, s.adminToken)
	s.Equal(http.StatusBadRequest, status)
	s.Require().NotNil(env.Error)
	s.Equal("VALIDATION_FAILED", env.Error.Code)
}

func (s *RouterSuite) TestSeedIsIdempotent() {
	status, env := s.do(http.MethodPost, "/admin/sla/policies/seed", nil, s.adminToken)
	s.Require().Equal(http.StatusOK, status)
	var first service.SeedResult
	s.Require().NoError(json.Unmarshal(env.Data, &first))
	s.Equal(len(domain.RequestTypes)*len(domain.Priorities), first.Created)

	status, env = s.do(http.MethodPost, "/admin/sla/policies/seed", nil, s.adminToken)
	s.Require().Equal(http.StatusOK, status)
	var second service.SeedResult
	s.Require().NoError(json.Unmarshal(env.Data, &second))
	s.Zero(second.Created)
	s.Equal(first.Created, second.Skipped)
}

func (s *RouterSuite) TestManualSweepAndLatestReport() {
	status, env := s.do(http.MethodGet, "/admin/sla/sweeps/latest", nil, s.adminToken)
	s.Equal(http.StatusNotFound, status)
	s.Require().NotNil(env.Error)

	s.stores[domain.RequestTypeCall].Put(domain.RequestSLASnapshot{
		RequestID:     "call-1",
		RequestNumber: "CALL-1",
		RequestType:   domain.RequestTypeCall,
		Priority:      domain.PriorityNormal,
		CreatedAt:     time.Now().UTC().Add(-2 * time.Hour),
		SubscriberID:  "sub-1",
	}, true)

	status, env = s.do(http.MethodPost, "/admin/sla/sweeps", nil, s.adminToken)
	s.Require().Equal(http.StatusOK, status)
	var report domain.SweepReport
	s.Require().NoError(json.Unmarshal(env.Data, &report))
	s.Equal(1, report.Checked)
	s.Equal(1, report.Breached)

	got := s.stores[domain.RequestTypeCall].Status("call-1")
	s.Require().NotNil(got)
	s.Equal(domain.SLAStatusBreached, *got)

	status, env = s.do(http.MethodGet, "/admin/sla/sweeps/latest", nil, s.adminToken)
	s.Require().Equal(http.StatusOK, status)
	var latest domain.SweepReport
	s.Require().NoError(json.Unmarshal(env.Data, &latest))
	s.Equal(report.ID, latest.ID)
}

func (s *RouterSuite) TestDailyReportRoundTrip() {
	status, env := s.do(http.MethodPost, "/admin/sla/reports/daily", map[string]any{"date": "2026-01-05"}, s.adminToken)
	s.Require().Equal(http.StatusOK, status)
	s.NotEmpty(env.Data)

	status, _ = s.do(http.MethodGet, "/admin/sla/reports/daily/2026-01-05", nil, s.adminToken)
	s.Equal(http.StatusOK, status)

	status, env = s.do(http.MethodGet, "/admin/sla/reports/daily/2026-01-06", nil, s.adminToken)
	s.Equal(http.StatusNotFound, status)
	s.Require().NotNil(env.Error)

	status, env = s.do(http.MethodGet, "/admin/sla/reports/daily/yesterday", nil, s.adminToken)
	s.Equal(http.StatusBadRequest, status)
	s.Require().NotNil(env.Error)
	s.Equal("VALIDATION_FAILED", env.Error.Code)
}
