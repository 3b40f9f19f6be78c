package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/http/auth"
	"nuvelon-admin/internal/lifecycle"
	"nuvelon-admin/internal/model"
	"nuvelon-admin/internal/notification"
	"nuvelon-admin/internal/scheduler"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "server-test-secret"

type testApp struct {
	handler    http.Handler
	storage    model.ClientStorage
	security   *audit.SecurityLog
	dispatcher *notification.Dispatcher
	scheduler  *scheduler.Scheduler
	token      string
	runs       int
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	storage := model.NewMemoryClientStorage()
	_, err := storage.CreatePlan(ctx, model.Plan{Id: "monthly", Name: "Monthly", DurationMonths: 1, Price: 29.9, IsActive: true})
	require.NoError(t, err)
	_, err = storage.CreatePlan(ctx, model.Plan{Id: "annual", Name: "Annual", DurationMonths: 12, Price: 299.9, IsActive: true})
	require.NoError(t, err)

	security := audit.NewSecurityLog(0)
	dispatcher := notification.NewDispatcher(notification.LogTransport{}, security, notification.Config{AdminEmails: []string{"admin@example.com"}})
	app := &testApp{storage: storage, security: security, dispatcher: dispatcher}
	app.scheduler = scheduler.New(security, time.UTC)
	require.NoError(t, app.scheduler.AddJob(scheduler.Job{
		Id:       "counter",
		Name:     "Counter",
		Schedule: "0 6 * * *",
		Enabled:  true,
		Handler: func(context.Context) error {
			app.runs++
			return nil
		},
	}))
	require.NoError(t, app.scheduler.AddJob(scheduler.Job{
		Id:       "broken",
		Name:     "Broken",
		Schedule: "0 7 * * *",
		Enabled:  true,
		Handler: func(context.Context) error {
			return errors.New("disk full")
		},
	}))

	server, err := NewServer(Services{
		Automation:    app.scheduler,
		Clients:       lifecycle.NewEngine(storage, security),
		Notifications: dispatcher,
		Security:      security,
		Storage:       storage,
	}, Config{JWTSecret: jwtSecret, RateLimit: 1000, RateLimitWindow: time.Minute})
	require.NoError(t, err)
	app.handler = server.Handler

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserId:           "admin-1",
		Username:         "ana",
		Role:             "admin",
	}
	app.token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return app
}

func (app *testApp) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+app.token)
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (app *testApp) createClient(t *testing.T, body map[string]any) model.Client {
	t.Helper()
	rec := app.do(t, http.MethodPost, "/api/v1/clients/", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[clientResponse](t, rec).Client
}

func TestRequiresToken(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/automation/jobs/", nil)
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, app.security.ByType("ACCESS_DENIED"), 1)
}

func TestListJobs(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodGet, "/api/v1/automation/jobs/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[jobsResponse](t, rec)
	assert.True(t, resp.Success)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, "counter", resp.Jobs[0].Id)
	assert.Equal(t, "0 6 * * *", resp.Jobs[0].Schedule)
	assert.True(t, resp.Jobs[0].Enabled)
	assert.Equal(t, scheduler.DefaultMaxErrors, resp.Jobs[0].MaxErrors)
}

func TestRunJob(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/automation/jobs/", map[string]any{"jobId": "counter"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, messageResponse{Success: true, Message: "job counter executed"}, decode[messageResponse](t, rec))
	assert.Equal(t, 1, app.runs)

	rec = app.do(t, http.MethodPost, "/api/v1/automation/jobs/", map[string]any{"jobId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/automation/jobs/", map[string]any{"jobId": "broken"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")
	job, _ := app.scheduler.Job("broken")
	assert.Equal(t, 1, job.ErrorCount)

	rec = app.do(t, http.MethodPost, "/api/v1/automation/jobs/", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "jobId")
}

func TestToggleJob(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPut, "/api/v1/automation/jobs/", map[string]any{"jobId": "counter", "enabled": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "job counter disabled", decode[messageResponse](t, rec).Message)
	job, _ := app.scheduler.Job("counter")
	assert.False(t, job.Enabled)
	assert.Nil(t, job.NextRun)

	rec = app.do(t, http.MethodPut, "/api/v1/automation/jobs/", map[string]any{"jobId": "counter"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPut, "/api/v1/automation/jobs/", map[string]any{"jobId": "missing", "enabled": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectsNonJSONBody(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/automation/jobs/", bytes.NewReader([]byte("jobId=counter")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+app.token)
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/automation/jobs/", map[string]any{"jobId": "counter", "force": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, app.runs)
}

func TestSchedulePreview(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/v1/automation/schedule/?schedule=0+6+*+*+*&count=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[schedulePreviewResponse](t, rec)
	assert.Equal(t, "UTC", resp.Timezone)
	require.Len(t, resp.Runs, 3)
	for i, run := range resp.Runs {
		assert.Equal(t, 6, run.UTC().Hour())
		if i > 0 {
			assert.Equal(t, 24*time.Hour, run.Sub(resp.Runs[i-1]))
		}
	}

	rec = app.do(t, http.MethodGet, "/api/v1/automation/schedule/?schedule=whenever", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "crontabString")

	rec = app.do(t, http.MethodGet, "/api/v1/automation/schedule/?schedule=0+6+*+*+*&count=50", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndGetClient(t *testing.T) {
	app := newTestApp(t)
	purchase := time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC)

	client := app.createClient(t, map[string]any{
		"name":         "Joana Lima",
		"email":        "joana@example.com",
		"phone":        "+5511999998888",
		"planId":       "monthly",
		"purchaseDate": purchase,
	})
	assert.NotEmpty(t, client.Id)
	assert.Equal(t, model.StatusActive, client.Status)
	assert.True(t, client.RenewalDate.Equal(time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)))

	rec := app.do(t, http.MethodGet, "/api/v1/clients/"+string(client.Id)+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Joana Lima", decode[clientResponse](t, rec).Client.Name)

	rec = app.do(t, http.MethodGet, "/api/v1/clients/"+string(client.Id)+"/history/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[historyResponse](t, rec).History
	require.Len(t, history, 1)
	assert.Equal(t, model.ActionCreated, history[0].Action)
	assert.Equal(t, "admin-1", history[0].Actor)

	rec = app.do(t, http.MethodGet, "/api/v1/clients/unknown/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateClientValidation(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodPost, "/api/v1/clients/", map[string]any{
		"name":   "J",
		"phone":  "abc",
		"planId": "lifetime",
		"status": "Ativo",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "failed on min=2", body.Fields["name"])
	assert.Equal(t, "failed on phone", body.Fields["phone"])
	assert.Equal(t, "failed on planExists", body.Fields["planId"])
	assert.Equal(t, "failed on clientStatus", body.Fields["status"])
}

func TestClientActions(t *testing.T) {
	app := newTestApp(t)
	client := app.createClient(t, map[string]any{"name": "Carlos", "planId": "monthly"})
	actions := "/api/v1/clients/" + string(client.Id) + "/actions/"

	rec := app.do(t, http.MethodPost, actions+"?action=suspend", map[string]any{"reason": "chargeback"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[clientActionResponse](t, rec)
	assert.Equal(t, model.StatusSuspended, resp.Client.Status)
	assert.Nil(t, resp.Client.RenewalDate)

	rec = app.do(t, http.MethodPost, actions+"?action=reactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusActive, decode[clientActionResponse](t, rec).Client.Status)

	rec = app.do(t, http.MethodPost, actions+"?action=renew", map[string]any{"planId": "annual"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode[clientActionResponse](t, rec)
	assert.Equal(t, "client renewed", resp.Message)
	require.NotNil(t, resp.Client.RenewalDate)
	assert.True(t, resp.Client.RenewalDate.After(client.RenewalDate))

	rec = app.do(t, http.MethodPost, actions+"?action=cancel", map[string]any{"reason": "moved abroad"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusCancelled, decode[clientActionResponse](t, rec).Client.Status)

	rec = app.do(t, http.MethodPost, actions+"?action=cancel", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, actions+"?action=delete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, actions+"?action=renew", map[string]any{"planId": "lifetime"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/clients/unknown/actions/?action=reactivate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	history, err := app.storage.GetHistory(context.Background(), client.Id)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestStatistics(t *testing.T) {
	app := newTestApp(t)
	app.createClient(t, map[string]any{"name": "Ana", "planId": "monthly"})
	app.createClient(t, map[string]any{"name": "Bruno", "planId": "annual"})
	app.createClient(t, map[string]any{"name": "Caio", "planId": "monthly", "status": "cancelled"})

	rec := app.do(t, http.MethodGet, "/api/v1/clients/statistics/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[statisticsResponse](t, rec).Statistics
	assert.Equal(t, 3, stats.TotalClients)
	assert.Equal(t, 2, stats.ActiveClients)
	assert.Equal(t, 1, stats.CancelledClients)
	assert.InDelta(t, 329.8, stats.MonthlyRevenue, 0.001)
}

func TestNotificationsAndSecurityEvents(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, app.dispatcher.SendSystem(ctx, "Backup", "done", []string{"ops@example.com", "cto@example.com"}))
	require.NoError(t, app.dispatcher.SendAlert(ctx, "Disk", "90% used", notification.SeverityHigh))

	rec := app.do(t, http.MethodGet, "/api/v1/notifications/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[notificationsResponse](t, rec).Notifications, 3)

	rec = app.do(t, http.MethodGet, "/api/v1/notifications/?type=system&recipient=cto@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[notificationsResponse](t, rec).Notifications
	require.Len(t, filtered, 1)
	assert.Equal(t, "cto@example.com", filtered[0].Recipient)

	rec = app.do(t, http.MethodGet, "/api/v1/notifications/?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[notificationsResponse](t, rec).Notifications, 1)

	rec = app.do(t, http.MethodGet, "/api/v1/notifications/?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	app.createClient(t, map[string]any{"name": "Dora", "planId": "monthly"})
	rec = app.do(t, http.MethodGet, "/api/v1/security/events/?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[securityEventsResponse](t, rec).Events
	require.NotEmpty(t, events)
	found := false
	for _, event := range events {
		if event.Event == "CLIENT_CREATED" {
			found = true
			assert.Equal(t, "admin-1", event.UserId)
		}
	}
	assert.True(t, found)
}
