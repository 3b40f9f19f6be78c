package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/lifecycle"
	"nuvelon-admin/internal/model"
	"nuvelon-admin/internal/notification"
	"nuvelon-admin/internal/scheduler"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	lock   sync.Mutex
	emails []notification.Email
	sms    []notification.SMS
}

func (o *outbox) SendEmail(_ context.Context, email notification.Email) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.emails = append(o.emails, email)
	return nil
}

func (o *outbox) SendSMS(_ context.Context, sms notification.SMS) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.sms = append(o.sms, sms)
	return nil
}

type failingLifecycle struct{}

func (failingLifecycle) UpdateClientStatuses(context.Context) ([]model.ClientStatusUpdate, error) {
	return nil, errors.New("connection refused")
}

func (failingLifecycle) GenerateRenewalNotifications(context.Context) ([]model.RenewalNotification, error) {
	return nil, errors.New("connection refused")
}

func (failingLifecycle) Statistics(context.Context) (model.ClientStatistics, error) {
	return model.ClientStatistics{}, errors.New("connection refused")
}

type environment struct {
	scheduler  *scheduler.Scheduler
	storage    model.ClientStorage
	security   *audit.SecurityLog
	dispatcher *notification.Dispatcher
	outbox     *outbox
	deps       Dependencies
}

func newEnvironment(t *testing.T) environment {
	t.Helper()
	storage := model.NewMemoryClientStorage()
	security := audit.NewSecurityLog(0)
	out := &outbox{}
	admins := []string{"admin@nuvelon.com"}
	dispatcher := notification.NewDispatcher(out, security, notification.Config{AdminEmails: admins})

	_, err := storage.CreatePlan(context.Background(), model.Plan{Id: "monthly", Name: "Monthly", DurationMonths: 1, Price: 30, IsActive: true})
	require.NoError(t, err)

	deps := Dependencies{
		Lifecycle:   lifecycle.NewEngine(storage, security),
		Storage:     storage,
		Dispatcher:  dispatcher,
		Security:    security,
		AdminEmails: admins,
		BackupDir:   t.TempDir(),
	}
	return environment{
		scheduler:  scheduler.New(security, time.UTC),
		storage:    storage,
		security:   security,
		dispatcher: dispatcher,
		outbox:     out,
		deps:       deps,
	}
}

func (env environment) addClient(t *testing.T, id string, status model.ClientStatus, renewal time.Time) {
	t.Helper()
	_, err := env.storage.CreateClient(context.Background(), model.Client{
		Id:           model.ClientId(id),
		Name:         "Client " + id,
		Email:        id + "@example.com",
		PlanId:       "monthly",
		PurchaseDate: renewal.AddDate(0, -1, 0),
		RenewalDate:  renewal,
		Status:       status,
	})
	require.NoError(t, err)
}

func TestInitializeRegistersBuiltInJobs(t *testing.T) {
	env := newEnvironment(t)
	require.NoError(t, Initialize(env.scheduler, env.deps))

	expected := map[string]struct {
		schedule  string
		maxErrors int
	}{
		UpdateClientStatusesId:         {"0 6 * * *", 3},
		GenerateRenewalNotificationsId: {"0 9 * * *", 3},
		DataBackupId:                   {"0 2 * * 0", 2},
		CleanupLogsId:                  {"0 3 1 * *", 2},
		WeeklyReportId:                 {"0 8 * * 1", 2},
		SystemHealthCheckId:            {"*/30 * * * *", 5},
	}
	jobs := env.scheduler.JobsStatus()
	require.Len(t, jobs, len(expected))
	assert.Equal(t, UpdateClientStatusesId, jobs[0].Id)
	for _, job := range jobs {
		want, ok := expected[job.Id]
		require.True(t, ok, job.Id)
		assert.Equal(t, want.schedule, job.Schedule)
		assert.Equal(t, want.maxErrors, job.MaxErrors)
		assert.True(t, job.Enabled)
		assert.NotNil(t, job.NextRun)
	}

	events := env.security.ByType("AUTOMATION_INITIALIZED")
	require.Len(t, events, 1)
	assert.Equal(t, 6, events[0].Details["jobsRegistered"])
}

func TestInitializeTwiceFails(t *testing.T) {
	env := newEnvironment(t)
	require.NoError(t, Initialize(env.scheduler, env.deps))

	err := Initialize(env.scheduler, env.deps)
	assert.ErrorIs(t, err, scheduler.ErrorDuplicateJob)
	assert.Len(t, env.security.ByType("AUTOMATION_INITIALIZATION_FAILED"), 1)
}

func TestUpdateStatusesAndNotifyJobs(t *testing.T) {
	env := newEnvironment(t)
	require.NoError(t, Initialize(env.scheduler, env.deps))
	now := time.Now()
	env.addClient(t, "expired", model.StatusActive, now.AddDate(0, 0, -2))
	env.addClient(t, "fine", model.StatusActive, now.AddDate(0, 0, 20))

	ctx := context.Background()
	require.NoError(t, env.scheduler.RunJob(ctx, UpdateClientStatusesId))
	events := env.security.ByType("CLIENT_STATUS_UPDATE")
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Details["updatedClients"])

	require.NoError(t, env.scheduler.RunJob(ctx, GenerateRenewalNotificationsId))
	assert.Len(t, env.outbox.emails, 1)
	assert.Equal(t, "expired@example.com", env.outbox.emails[0].To)
	assert.Len(t, env.dispatcher.ByType(notification.TypeRenewal), 1)
	assert.Len(t, env.security.ByType("RENEWAL_NOTIFICATIONS_SENT"), 1)
}

func TestDataBackupWritesSnapshot(t *testing.T) {
	env := newEnvironment(t)
	require.NoError(t, Initialize(env.scheduler, env.deps))
	env.addClient(t, "c1", model.StatusActive, time.Now().AddDate(0, 0, 10))

	require.NoError(t, env.scheduler.RunJob(context.Background(), DataBackupId))

	files, err := filepath.Glob(filepath.Join(env.deps.BackupDir, "backup-*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var data snapshot
	require.NoError(t, json.Unmarshal(content, &data))
	assert.Len(t, data.Plans, 1)
	require.Len(t, data.Clients, 1)
	assert.Equal(t, model.ClientId("c1"), data.Clients[0].Id)

	events := env.security.ByType("DATA_BACKUP_COMPLETED")
	require.Len(t, events, 1)
	assert.Equal(t, files[0], events[0].Details["file"])
}

func TestCleanupLogsPrunesOldEntries(t *testing.T) {
	env := newEnvironment(t)
	ctx := context.Background()
	require.NoError(t, env.dispatcher.SendSystem(ctx, "t", "m", []string{"a@example.com"}))
	env.security.Log(audit.Event{Event: "OLD", IP: audit.SystemIP, Success: true})

	tk := &tasks{Dependencies: env.deps, registry: env.scheduler, now: func() time.Time {
		return time.Now().Add(LogRetention + time.Hour)
	}}
	require.NoError(t, tk.cleanupLogs(ctx))

	assert.Empty(t, env.dispatcher.History(-1))
	events := env.security.Recent(-1)
	require.Len(t, events, 1)
	assert.Equal(t, "LOGS_CLEANUP_COMPLETED", events[0].Event)
	assert.Equal(t, 1, events[0].Details["removedEvents"])
	assert.Equal(t, 1, events[0].Details["removedNotifications"])
}

func TestWeeklyReport(t *testing.T) {
	env := newEnvironment(t)
	require.NoError(t, Initialize(env.scheduler, env.deps))
	env.addClient(t, "c1", model.StatusActive, time.Now().AddDate(0, 0, 20))
	env.addClient(t, "c2", model.StatusActive, time.Now().AddDate(0, 0, 25))

	require.NoError(t, env.scheduler.RunJob(context.Background(), WeeklyReportId))

	require.Len(t, env.outbox.emails, 1)
	assert.Equal(t, "admin@nuvelon.com", env.outbox.emails[0].To)
	assert.Contains(t, env.outbox.emails[0].Body, "Total clients: 2")
	assert.Contains(t, env.outbox.emails[0].Body, "Monthly revenue: R$ 60.00")
	assert.Len(t, env.security.ByType("WEEKLY_REPORT_GENERATED"), 1)
}

func TestHealthCheckQuietWhenHealthy(t *testing.T) {
	env := newEnvironment(t)
	require.NoError(t, Initialize(env.scheduler, env.deps))

	require.NoError(t, env.scheduler.RunJob(context.Background(), SystemHealthCheckId))
	assert.Empty(t, env.outbox.emails)
}

func TestHealthCheckRaisesAlert(t *testing.T) {
	env := newEnvironment(t)
	require.NoError(t, Initialize(env.scheduler, env.deps))
	for i := 0; i < 6; i++ {
		env.addClient(t, string(rune('a'+i)), model.StatusActive, time.Now().AddDate(0, 0, 2))
	}

	require.NoError(t, env.scheduler.RunJob(context.Background(), SystemHealthCheckId))
	alerts := env.dispatcher.ByType(notification.TypeAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, "medium", alerts[0].Metadata["severity"])
	assert.Contains(t, alerts[0].Message, "6 clients expiring within 7 days")
}

func TestHealthCheckFailureSendsCriticalAlert(t *testing.T) {
	env := newEnvironment(t)
	env.deps.Lifecycle = failingLifecycle{}
	require.NoError(t, Initialize(env.scheduler, env.deps))

	err := env.scheduler.RunJob(context.Background(), SystemHealthCheckId)
	var handlerErr *scheduler.HandlerError
	require.ErrorAs(t, err, &handlerErr)

	alerts := env.dispatcher.ByType(notification.TypeAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, "critical", alerts[0].Metadata["severity"])

	job, ok := env.scheduler.Job(SystemHealthCheckId)
	require.True(t, ok)
	assert.Equal(t, 1, job.ErrorCount)
}
