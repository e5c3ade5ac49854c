package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classbook-backend/internal/calendar"
	"github.com/stemsi/classbook-backend/internal/config"
	"github.com/stemsi/classbook-backend/internal/handler"
	"github.com/stemsi/classbook-backend/internal/live"
	"github.com/stemsi/classbook-backend/internal/metrics"
	"github.com/stemsi/classbook-backend/internal/repository/memory"
	"github.com/stemsi/classbook-backend/internal/service"
	"github.com/stemsi/classbook-backend/internal/validator"
	"github.com/stemsi/classbook-backend/internal/worker"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	auth   *service.AuthService
}

// newTestServer wires the full stack over the in-memory store with "today"
// pinned to Wednesday 2024-03-06 in Colombo.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:            gin.TestMode,
		JWTSecret:          "test-secret",
		JWTExpiry:          time.Hour,
		AgendaDays:         7,
		SeriesMonths:       3,
		RateLimitPerMinute: 1000,
	}
	cal, err := calendar.Load("Asia/Colombo", calendar.FixedClock(time.Date(2024, time.March, 6, 4, 30, 0, 0, time.UTC)))
	require.NoError(t, err)

	log := zerolog.Nop()
	m := metrics.New()
	db := memory.NewDB()
	users := memory.NewUserRepository(db)
	completions := memory.NewCompletionRepository(db)
	notifier := live.NewLocalNotifier()
	queue := worker.NewLocalIndexQueue(64, m, log)

	authService := service.NewAuthService(cfg)
	classService := service.NewClassService(memory.NewClassRepository(db), users, queue, notifier, log)
	completionService := service.NewCompletionService(completions, classService, cal, notifier, m, log)
	feeService := service.NewFeeService(memory.NewFeeRepository(db), classService, cal, notifier, m, log)
	statsService := service.NewStatsService(completions, classService, completionService, cal, notifier, cfg.AgendaDays, cfg.SeriesMonths)

	handlers := &Handlers{
		Me:         handler.NewMeHandler(service.NewUserService(users), log),
		Class:      handler.NewClassHandler(classService, log),
		Agenda:     handler.NewAgendaHandler(statsService, completionService, log),
		Completion: handler.NewCompletionHandler(completionService, statsService, cal, log),
		Fee:        handler.NewFeeHandler(feeService, classService, m, log),
		Dashboard:  handler.NewDashboardHandler(statsService, m, log),
		WS:         handler.NewWSHandler(completionService, cal, m, log, nil),
		Health:     handler.NewHealthHandler(nil),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &testServer{
		engine: SetupRouter(ctx, authService, handlers, cfg, m),
		auth:   authService,
	}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(userID, "Ana Perera", userID+"@example.com")
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func classBody() map[string]interface{} {
	return map[string]interface{}{
		"title":            "Maths",
		"description":      "Grade 10 algebra",
		"location":         "Room 4",
		"capacity":         20,
		"rate_per_student": "500",
		"schedule": []map[string]string{
			{"day": "Monday", "start_time": "16:00", "end_time": "18:00"},
			{"day": "Wednesday", "start_time": "16:00", "end_time": "18:00"},
		},
	}
}

func createClass(t *testing.T, s *testServer, token string) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/classes", token, classBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data struct {
		Class struct {
			ID string `json:"id"`
		} `json:"class"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Class.ID)
	return data.Class.ID
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/classes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REQUIRED", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/classes", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", env.Error.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/classes?token="+s.token(t, "u1"), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "query token fallback for EventSource")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "classbook_http_requests_total")
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "u1")

	rec, env := s.do(t, http.MethodGet, "/api/v1/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"display_name":"Ana Perera"`)

	rec, env = s.do(t, http.MethodPut, "/api/v1/me", tok, map[string]string{"display_name": "Ana", "email": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Fields, "email")
}

func TestClassLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "u1")
	id := createClass(t, s, tok)

	rec, env := s.do(t, http.MethodGet, "/api/v1/classes/"+id, s.token(t, "u2"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_CLASS_OWNER", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/classes/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	rec, _ = s.do(t, http.MethodPatch, "/api/v1/classes/"+id+"/active", tok, map[string]bool{"active": false})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/agenda/today", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"sessions":[]`)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/classes/"+id, tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/classes/"+id, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CLASS_NOT_FOUND", env.Error.Code)
}

func TestClassValidation(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "u1")

	body := classBody()
	body["schedule"] = []map[string]string{
		{"day": "Monday", "start_time": "10:00", "end_time": "09:00"},
		{"day": "Monday", "start_time": "16:00", "end_time": "18:00"},
	}
	rec, env := s.do(t, http.MethodPost, "/api/v1/classes", tok, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "schedule[0].end_time")
	assert.Contains(t, env.Error.Fields, "schedule[1].day")

	body = classBody()
	body["schedule"] = []map[string]string{{"day": "Funday", "start_time": "16:00", "end_time": "18:00"}}
	rec, env = s.do(t, http.MethodPost, "/api/v1/classes", tok, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Fields, "schedule[0].day")
}

func TestCompletionFlow(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "u1")
	id := createClass(t, s, tok)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/classes/"+id+"/completions", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = s.do(t, http.MethodPost, "/api/v1/classes/"+id+"/completions", tok, map[string]string{"date": "2024-03-04"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := s.do(t, http.MethodPost, "/api/v1/classes/"+id+"/completions", tok, map[string]string{"date": "2024-03-05"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Fields, "date")

	rec, env = s.do(t, http.MethodGet, "/api/v1/completions?date=2024-03-04", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), id)

	rec, env = s.do(t, http.MethodGet, "/api/v1/completions?date=04-03-2024", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATE", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/classes/"+id+"/completions", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Completions []struct {
			Date string `json:"date"`
		} `json:"completions"`
		ByMonth map[string]int `json:"by_month"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history.Completions, 2)
	assert.Equal(t, map[string]int{"2024-03": 2}, history.ByMonth)

	rec, env = s.do(t, http.MethodGet, "/api/v1/stats/series?months=2", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"series":[{"month_key":"2024-02","count":0},{"month_key":"2024-03","count":2}]}`, string(env.Data))

	rec, _ = s.do(t, http.MethodGet, "/api/v1/stats/series?months=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeeFlow(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "u1")
	id := createClass(t, s, tok)
	base := "/api/v1/classes/" + id + "/fees/2024-03"

	rec, _ := s.do(t, http.MethodGet, base, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := s.do(t, http.MethodPut, base, tok, map[string]interface{}{"rate_per_student": "500", "enrolled_count": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"status":"pending"`)

	rec, env = s.do(t, http.MethodPost, base+"/payments", tok, map[string]string{"amount": "2000", "method": "card"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"status":"partial"`)
	assert.Contains(t, string(env.Data), `"due_amount":"3000.00"`)

	rec, env = s.do(t, http.MethodPost, base+"/payments", tok, map[string]string{"amount": "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Fields, "amount")

	rec, env = s.do(t, http.MethodPost, base+"/payments", tok, map[string]string{"amount": "10", "method": "cheque"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Fields, "method")

	rec, env = s.do(t, http.MethodGet, "/api/v1/classes/"+id+"/fees/2024-3", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_MONTH", env.Error.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/fees/2024-03/summary", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total_due":"3000.00"`)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/fees/2024-03/report.xlsx", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Equal(t, "PK", rec.Body.String()[:2], "xlsx is a zip archive")

	rec, _ = s.do(t, http.MethodGet, base+"/payments", s.token(t, "u2"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "u1")
	createClass(t, s, tok)

	rec, env := s.do(t, http.MethodGet, "/api/v1/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Dashboard struct {
			Date     string `json:"date"`
			Weekday  string `json:"weekday"`
			Today    []any  `json:"today"`
			Upcoming []any  `json:"upcoming"`
		} `json:"dashboard"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "2024-03-06", data.Dashboard.Date)
	assert.Equal(t, "Wednesday", data.Dashboard.Weekday)
	assert.Len(t, data.Dashboard.Today, 1)
	assert.Len(t, data.Dashboard.Upcoming, 2)
}
