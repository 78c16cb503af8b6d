package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/labdesk/internal/authorization"
	basketdomain "github.com/smallbiznis/labdesk/internal/basket/domain"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/observability"
	"github.com/smallbiznis/labdesk/internal/ratelimit"
	registrationdomain "github.com/smallbiznis/labdesk/internal/registration/domain"
	"github.com/smallbiznis/labdesk/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T, env *testenv.Env, authz authorization.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewServer(ServerParams{
		Gin:             NewEngine(observability.Config{}, nil),
		Cfg:             env.Config,
		Log:             zap.NewNop(),
		Clock:           env.Clock,
		Policy:          env.Policy,
		AuthzSvc:        authz,
		AuditSvc:        env.Audit,
		ActiveUserSvc:   env.ActiveUsers,
		BasketSvc:       env.Baskets,
		ExemptionSvc:    env.Exemptions,
		IntakeSvc:       env.Intake,
		BadgeSvc:        env.Badges,
		RegistrationSvc: env.Registration,
		QuizSvc:         env.Quiz,
		TrainingSvc:     env.Training,
	})
}

func do(t *testing.T, s *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	payload := decode(t, w)["error"].(map[string]any)
	code := ""
	if errs, ok := payload["errors"].([]any); ok && len(errs) > 0 {
		code = errs[0].(map[string]any)["code"].(string)
	}
	return payload["type"].(string), code
}

func freeBasket(id, zone string) []string {
	return []string{id, zone, "TRUE", "FALSE", "", "", "", "", "", "", ""}
}

func takenBasket(id, zone string) []string {
	return []string{id, zone, "FALSE", "TRUE", "", "bo456", "555", "bo@test.edu", "Bo", "Li", "2024-06-01 10:00:00"}
}

func seedRegistrations(t *testing.T, env *testenv.Env) {
	t.Helper()
	env.Seed(t, env.Config.Sheets.Registration, registrationdomain.Headers,
		[]string{"2024-06-28 10:00:00", "jane@test.edu", "jd123", "Jane", "Doe", "555-0100", "UT Student", "ECE", "Dr. Smith", "No"},
	)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testenv.New(t), nil)

	w := do(t, s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestBasketAssignLookupAndReturn(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.BasketIndex, basketdomain.IndexHeaders,
		freeBasket("S001", "CleanroomA"),
		freeBasket("S002", "CleanroomA"),
	)
	s := newTestServer(t, env, nil)

	w := do(t, s, http.MethodPost, "/api/baskets/assign", map[string]any{
		"eid":        "jd123",
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "jane@test.edu",
		"zone":       "CleanroomA",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "S001", data["basket_id"])
	assert.Equal(t, true, data["assigned"])
	assert.Equal(t, true, data["notified"])
	require.Len(t, env.Mail.Messages(), 1)
	assert.Equal(t, "Cleanroom Basket Assigned", env.Mail.Messages()[0].Subject)

	w = do(t, s, http.MethodGet, "/api/baskets/s001", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["data"].(map[string]any)["available"])

	w = do(t, s, http.MethodGet, "/api/baskets?available=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)["data"].([]any)
	require.Len(t, listed, 1)
	assert.Equal(t, "S002", listed[0].(map[string]any)["basket_id"])

	w = do(t, s, http.MethodPost, "/api/baskets/return", map[string]any{"ids": []string{"S001", "N999"}}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, []any{"S001"}, body["data"].(map[string]any)["returned"])
	assert.Equal(t, []any{"N999"}, body["data"].(map[string]any)["failed"])
	assert.NotEmpty(t, body["warnings"])

	w = do(t, s, http.MethodPost, "/api/baskets/return", map[string]any{"ids": []string{"N999"}}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBasketsPaginates(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.BasketIndex, basketdomain.IndexHeaders,
		freeBasket("S001", "CleanroomA"),
		freeBasket("S002", "CleanroomA"),
		freeBasket("N001", "CleanroomB"),
	)
	s := newTestServer(t, env, nil)

	w := do(t, s, http.MethodGet, "/api/baskets?page_size=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"], 2)
	info := body["page_info"].(map[string]any)
	require.Equal(t, true, info["has_more"])

	w = do(t, s, http.MethodGet, "/api/baskets?page_size=2&page_token="+info["next_page_token"].(string), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	rest := decode(t, w)["data"].([]any)
	require.Len(t, rest, 1)
	assert.Equal(t, "N001", rest[0].(map[string]any)["basket_id"])

	w = do(t, s, http.MethodGet, "/api/baskets?page_token=garbage", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidationErrorsUseEnvelope(t *testing.T) {
	env := testenv.New(t)
	s := newTestServer(t, env, nil)

	w := do(t, s, http.MethodGet, "/api/baskets/nope", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	kind, code := errorOf(t, w)
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_basket_id", code)

	w = do(t, s, http.MethodPost, "/api/forms/survey", map[string]string{"Email Address": "a@test.edu"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, code = errorOf(t, w)
	assert.Equal(t, "unknown_form", code)

	w = do(t, s, http.MethodPost, "/api/emails/postcards", map[string]string{"addresses": "a@test.edu"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, code = errorOf(t, w)
	assert.Equal(t, "unknown_email_kind", code)

	w = do(t, s, http.MethodPost, "/api/training/group-quiz", map[string]string{"date": "07/01/2024"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, code = errorOf(t, w)
	assert.Equal(t, "invalid_date", code)

	w = do(t, s, http.MethodGet, "/api/badges", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExemptionRoutes(t *testing.T) {
	s := newTestServer(t, testenv.New(t), nil)

	w := do(t, s, http.MethodPost, "/api/exemptions", map[string]string{"user": "Bo  Li", "reason": "sabbatical"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Bo Li", decode(t, w)["data"].(map[string]any)["user"])

	w = do(t, s, http.MethodGet, "/api/exemptions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = do(t, s, http.MethodDelete, "/api/exemptions/Bo%20Li", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/api/exemptions/Bo%20Li", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitForm(t *testing.T) {
	env := testenv.New(t)
	s := newTestServer(t, env, nil)
	person := map[string]string{
		"Email Address": "jane@test.edu",
		"UT EID":        "jd123",
		"First Name":    "Jane",
		"Last Name":     "Doe",
	}

	quiz := map[string]string{"Score": "10 / 10"}
	for k, v := range person {
		quiz[k] = v
	}
	w := do(t, s, http.MethodPost, "/api/forms/quiz", quiz, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["data"].(map[string]any)["row"])

	// An unmatched session keeps the row and reports the workflow failure.
	training := map[string]string{"Training Session": "2024-07-09 | 10:00 to 11:00"}
	for k, v := range person {
		training[k] = v
	}
	w = do(t, s, http.MethodPost, "/api/forms/training", training, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["warnings"])
	assert.Len(t, env.Table(t, env.Config.Sheets.TrainingRequests).Rows, 1)

	form := "Email+Address=jane%40test.edu&Score=3"
	req := httptest.NewRequest(http.MethodPost, "/api/forms/quiz", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Contains(t, []int{http.StatusOK, http.StatusAccepted}, rec.Code, rec.Body.String())
	assert.Len(t, env.Table(t, env.Config.Sheets.Quiz).Rows, 2)
}

func TestBadgesAndEmails(t *testing.T) {
	env := testenv.New(t)
	seedRegistrations(t, env)
	s := newTestServer(t, env, nil)

	w := do(t, s, http.MethodGet, "/api/badges?rows=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = do(t, s, http.MethodGet, "/api/badges?rows=9", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/emails/building-access", map[string]string{
		"addresses": "a@test.edu; not-an-address, b@test.edu",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["data"].(map[string]any)["sent"])
	assert.Len(t, env.Mail.Messages(), 2)
}

func TestExecLegacyDispatcher(t *testing.T) {
	env := testenv.New(t)
	seedRegistrations(t, env)
	env.Seed(t, env.Config.Sheets.BasketIndex, basketdomain.IndexHeaders,
		takenBasket("S001", "CleanroomA"),
	)
	s := newTestServer(t, env, nil)

	cases := []struct {
		query string
		want  string
	}{
		{"", legacyMissingParams},
		{"?basket=S001&operation=return", "Success: Basket returned successfully."},
		{"?basket=S001&operation=lend", legacyNotImplemented},
		{"?content=sendBuildingAccessEmail&email=a@test.edu", "Success: Email sent"},
		{"?content=sendPostcards&email=a@test.edu", legacyNotImplemented},
		{"?content=roster&eid=jd123", legacyNotImplemented},
	}
	for _, tc := range cases {
		w := do(t, s, http.MethodGet, "/exec"+tc.query, nil, "")
		assert.Equal(t, http.StatusOK, w.Code, tc.query)
		assert.Equal(t, tc.want, w.Body.String(), tc.query)
	}

	entry, err := env.Baskets.Lookup(t.Context(), "S001")
	require.NoError(t, err)
	assert.True(t, entry.Available)

	w := do(t, s, http.MethodGet, "/exec?basket=N404&operation=return", nil, "")
	assert.True(t, strings.HasPrefix(w.Body.String(), "Failure: Error returning basket - "), w.Body.String())

	w = do(t, s, http.MethodGet, "/exec?content=badges&eid=jd123", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = do(t, s, http.MethodGet, "/exec?badges=7", nil, "")
	assert.True(t, strings.HasPrefix(w.Body.String(), "Failure: There was an error running this module."), w.Body.String())
}

func apiToken(t *testing.T, name, role, secret string) config.APIToken {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return config.APIToken{Name: name, Role: role, Hash: string(hash)}
}

func TestTokenAuthAndRoles(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.BasketIndex, basketdomain.IndexHeaders,
		takenBasket("S001", "CleanroomA"),
	)
	enforcer, err := authorization.NewEnforcer(env.DB)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{
		Config: config.Config{APITokens: []config.APIToken{
			apiToken(t, "desk", authorization.RoleStaff, "s3cret"),
			apiToken(t, "boss", authorization.RoleAdmin, "t0p"),
		}},
		Log:      zap.NewNop(),
		Enforcer: enforcer,
	})
	s := newTestServer(t, env, authz)

	w := do(t, s, http.MethodGet, "/api/exemptions", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, s, http.MethodGet, "/api/exemptions", nil, "desk.wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodGet, "/api/exemptions", nil, "desk.s3cret")
	assert.Equal(t, http.StatusOK, w.Code)

	add := map[string]string{"user": "Bo Li"}
	w = do(t, s, http.MethodPost, "/api/exemptions", add, "desk.s3cret")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, s, http.MethodPost, "/api/exemptions", add, "boss.t0p")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/exec?basket=S001&operation=return", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, s, http.MethodGet, "/exec?basket=S001&operation=return&token=desk.s3cret", nil, "")
	assert.Equal(t, "Success: Basket returned successfully.", w.Body.String())
}

func TestMutationsAreAudited(t *testing.T) {
	env := testenv.New(t)
	env.Seed(t, env.Config.Sheets.BasketIndex, basketdomain.IndexHeaders,
		takenBasket("S001", "CleanroomA"),
	)
	enforcer, err := authorization.NewEnforcer(env.DB)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{
		Config: config.Config{APITokens: []config.APIToken{
			apiToken(t, "desk", authorization.RoleStaff, "s3cret"),
			apiToken(t, "boss", authorization.RoleAdmin, "t0p"),
		}},
		Log:      zap.NewNop(),
		Enforcer: enforcer,
	})
	s := newTestServer(t, env, authz)

	w := do(t, s, http.MethodPost, "/api/exemptions", map[string]string{"user": "Bo Li", "reason": "leave"}, "boss.t0p")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, s, http.MethodGet, "/exec?basket=s001&operation=return&token=desk.s3cret", nil, "")
	require.Equal(t, "Success: Basket returned successfully.", w.Body.String())
	// Rejected calls leave no trace.
	w = do(t, s, http.MethodPost, "/api/exemptions", map[string]string{"user": "Al Ng"}, "desk.s3cret")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, s, http.MethodGet, "/api/audit-logs", nil, "desk.s3cret")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, s, http.MethodGet, "/api/audit-logs", nil, "boss.t0p")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	logs := decode(t, w)["data"].([]any)
	require.Len(t, logs, 2)
	latest := logs[0].(map[string]any)
	assert.Equal(t, "basket.return", latest["action"])
	assert.Equal(t, "S001", latest["target_id"])
	assert.Equal(t, authorization.RoleStaff, latest["actor_type"])
	assert.Equal(t, "desk", latest["actor_id"])
	first := logs[1].(map[string]any)
	assert.Equal(t, "exemption.add", first["action"])
	assert.Equal(t, "Bo Li", first["target_id"])

	w = do(t, s, http.MethodGet, "/api/audit-logs?action=exemption.add&page_size=1", nil, "boss.t0p")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = do(t, s, http.MethodGet, "/api/audit-logs?start_at=2024-07-02T00:00:00Z&end_at=2024-07-01T00:00:00Z", nil, "boss.t0p")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeLimiter struct {
	allowed bool
	err     error
	clients []string
}

func (f *fakeLimiter) Allow(_ context.Context, client string) (*ratelimit.Result, error) {
	f.clients = append(f.clients, client)
	if f.err != nil {
		return nil, f.err
	}
	return &ratelimit.Result{Allowed: f.allowed, RetryAfter: 1500 * time.Millisecond}, nil
}

func TestFormSubmissionsAreRateLimited(t *testing.T) {
	env := testenv.New(t)
	s := newTestServer(t, env, nil)
	limiter := &fakeLimiter{}
	s.limiter = limiter

	w := do(t, s, http.MethodPost, "/api/forms/quiz", map[string]string{"Email Address": "a@test.edu", "Score": "10"}, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	kind, _ := errorOf(t, w)
	assert.Equal(t, "rate_limited", kind)
	require.Len(t, limiter.clients, 1)

	// Basket lookups are not throttled.
	w = do(t, s, http.MethodGet, "/api/baskets/S001", nil, "")
	assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	assert.Len(t, limiter.clients, 1)

	limiter.err = errors.New("redis down")
	w = do(t, s, http.MethodGet, "/exec", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, legacyMissingParams, w.Body.String())
}
