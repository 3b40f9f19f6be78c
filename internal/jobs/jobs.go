package jobs

import (
	"context"
	"fmt"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/model"
	"nuvelon-admin/internal/notification"
	"nuvelon-admin/internal/scheduler"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	UpdateClientStatusesId         = "update-client-statuses"
	GenerateRenewalNotificationsId = "generate-renewal-notifications"
	DataBackupId                   = "data-backup"
	CleanupLogsId                  = "cleanup-logs"
	WeeklyReportId                 = "weekly-report"
	SystemHealthCheckId            = "system-health-check"

	LogRetention = 90 * 24 * time.Hour
)

type ClientLifecycle interface {
	UpdateClientStatuses(ctx context.Context) ([]model.ClientStatusUpdate, error)
	GenerateRenewalNotifications(ctx context.Context) ([]model.RenewalNotification, error)
	Statistics(ctx context.Context) (model.ClientStatistics, error)
}

type Dispatcher interface {
	SendRenewal(ctx context.Context, n model.RenewalNotification) error
	SendSystem(ctx context.Context, title, message string, recipients []string) error
	SendAlert(ctx context.Context, title, message string, severity notification.Severity) error
	CleanupOlderThan(cutoff time.Time) int
}

type SecurityLog interface {
	audit.Logger
	CleanupOlderThan(cutoff time.Time) int
}

type Registry interface {
	AddJob(job scheduler.Job) error
	JobsStatus() []scheduler.Job
}

type Dependencies struct {
	Lifecycle   ClientLifecycle
	Storage     model.ClientStorage
	Dispatcher  Dispatcher
	Security    SecurityLog
	AdminEmails []string
	BackupDir   string
}

type tasks struct {
	Dependencies
	registry Registry
	now      func() time.Time
}

// Initialize registers the built-in maintenance jobs and records the outcome in the security log.
func Initialize(registry Registry, deps Dependencies) error {
	t := &tasks{Dependencies: deps, registry: registry, now: time.Now}
	definitions := t.definitions()
	for _, job := range definitions {
		if err := registry.AddJob(job); err != nil {
			deps.Security.Log(audit.Event{
				Event:   "AUTOMATION_INITIALIZATION_FAILED",
				IP:      audit.SystemIP,
				Details: map[string]any{"jobId": job.Id, "error": err.Error()},
				Success: false,
				Error:   err.Error(),
			})
			return fmt.Errorf("failed registering job %s: %w", job.Id, err)
		}
	}

	deps.Security.Log(audit.Event{
		Event:   "AUTOMATION_INITIALIZED",
		IP:      audit.SystemIP,
		Details: map[string]any{"jobsRegistered": len(definitions)},
		Success: true,
	})
	log.Infof("Registered %d scheduled jobs", len(definitions))
	return nil
}

func (t *tasks) definitions() []scheduler.Job {
	return []scheduler.Job{
		{Id: UpdateClientStatusesId, Name: "Update client statuses", Schedule: "0 6 * * *", Enabled: true, MaxErrors: 3, Handler: t.updateClientStatuses},
		{Id: GenerateRenewalNotificationsId, Name: "Generate renewal notifications", Schedule: "0 9 * * *", Enabled: true, MaxErrors: 3, Handler: t.generateRenewalNotifications},
		{Id: DataBackupId, Name: "Data backup", Schedule: "0 2 * * 0", Enabled: true, MaxErrors: 2, Handler: t.dataBackup},
		{Id: CleanupLogsId, Name: "Clean up old logs", Schedule: "0 3 1 * *", Enabled: true, MaxErrors: 2, Handler: t.cleanupLogs},
		{Id: WeeklyReportId, Name: "Weekly report", Schedule: "0 8 * * 1", Enabled: true, MaxErrors: 2, Handler: t.weeklyReport},
		{Id: SystemHealthCheckId, Name: "System health check", Schedule: "*/30 * * * *", Enabled: true, MaxErrors: 5, Handler: t.systemHealthCheck},
	}
}

func (t *tasks) updateClientStatuses(ctx context.Context) error {
	updates, err := t.Lifecycle.UpdateClientStatuses(ctx)
	if err != nil {
		return fmt.Errorf("failed updating client statuses: %w", err)
	}
	if len(updates) == 0 {
		return nil
	}

	changes := make([]map[string]any, 0, len(updates))
	for _, update := range updates {
		changes = append(changes, map[string]any{
			"clientId":  string(update.ClientId),
			"oldStatus": string(update.OldStatus),
			"newStatus": string(update.NewStatus),
			"reason":    update.Reason,
		})
	}
	t.Security.Log(audit.Event{
		Event:   "CLIENT_STATUS_UPDATE",
		IP:      audit.SystemIP,
		Details: map[string]any{"updatedClients": len(updates), "updates": changes},
		Success: true,
	})
	return nil
}

// generateRenewalNotifications keeps going when a single delivery fails; the dispatcher audits
// those failures itself.
func (t *tasks) generateRenewalNotifications(ctx context.Context) error {
	notifications, err := t.Lifecycle.GenerateRenewalNotifications(ctx)
	if err != nil {
		return fmt.Errorf("failed generating renewal notifications: %w", err)
	}
	if len(notifications) == 0 {
		return nil
	}

	clients := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		if err := t.Dispatcher.SendRenewal(ctx, n); err != nil {
			log.WithFields(log.Fields{
				"clientId": n.ClientId,
				"error":    err,
			}).Warn("Skipping failed renewal notification")
		}
		clients = append(clients, map[string]any{
			"clientId":         string(n.ClientId),
			"clientName":       n.ClientName,
			"daysUntilRenewal": n.DaysUntilRenewal,
		})
	}

	t.Security.Log(audit.Event{
		Event:   "RENEWAL_NOTIFICATIONS_SENT",
		IP:      audit.SystemIP,
		Details: map[string]any{"notificationsCount": len(notifications), "clients": clients},
		Success: true,
	})
	return nil
}

func (t *tasks) cleanupLogs(_ context.Context) error {
	cutoff := t.now().Add(-LogRetention)
	events := t.Security.CleanupOlderThan(cutoff)
	notifications := t.Dispatcher.CleanupOlderThan(cutoff)

	t.Security.Log(audit.Event{
		Event: "LOGS_CLEANUP_COMPLETED",
		IP:    audit.SystemIP,
		Details: map[string]any{
			"cutoffDate":           cutoff,
			"removedEvents":        events,
			"removedNotifications": notifications,
		},
		Success: true,
	})
	return nil
}

func (t *tasks) weeklyReport(ctx context.Context) error {
	stats, err := t.Lifecycle.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("failed computing weekly statistics: %w", err)
	}

	message := fmt.Sprintf(
		"Weekly report generated.\n\n"+
			"Total clients: %d\n"+
			"Active clients: %d\n"+
			"Need renewal: %d\n"+
			"Expiring within 7 days: %d\n"+
			"Monthly revenue: R$ %.2f",
		stats.TotalClients,
		stats.ActiveClients,
		stats.NeedsRenewal,
		stats.ExpiringSoon,
		stats.MonthlyRevenue,
	)
	if err = t.Dispatcher.SendSystem(ctx, "Weekly report - Nuvelon", message, t.AdminEmails); err != nil {
		return fmt.Errorf("failed sending weekly report: %w", err)
	}

	t.Security.Log(audit.Event{
		Event: "WEEKLY_REPORT_GENERATED",
		IP:    audit.SystemIP,
		Details: map[string]any{
			"period":     "weekly",
			"statistics": stats,
			"recipients": t.AdminEmails,
		},
		Success: true,
	})
	return nil
}

func (t *tasks) systemHealthCheck(ctx context.Context) error {
	issues, err := t.healthIssues(ctx)
	if err != nil {
		alertErr := t.Dispatcher.SendAlert(
			ctx,
			"System health check failed",
			fmt.Sprintf("The automated system health check failed: %v", err),
			notification.SeverityCritical,
		)
		if alertErr != nil {
			log.WithField("error", alertErr).Error("Error sending health check failure alert")
		}
		return err
	}
	if len(issues) == 0 {
		return nil
	}

	severity := notification.SeverityMedium
	if len(issues) > 3 {
		severity = notification.SeverityHigh
	}
	err = t.Dispatcher.SendAlert(
		ctx,
		"System issues detected",
		"The following issues were detected:\n"+strings.Join(issues, "\n"),
		severity,
	)
	if err != nil {
		return fmt.Errorf("failed sending health alert: %w", err)
	}
	return nil
}

func (t *tasks) healthIssues(ctx context.Context) ([]string, error) {
	stats, err := t.Lifecycle.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed reading client statistics: %w", err)
	}

	issues := make([]string, 0)
	failing := 0
	for _, job := range t.registry.JobsStatus() {
		if job.ErrorCount > 0 {
			failing++
		}
	}
	if failing > 0 {
		issues = append(issues, fmt.Sprintf("%d jobs with errors", failing))
	}
	if stats.NeedsRenewal > 10 {
		issues = append(issues, fmt.Sprintf("%d clients need renewal", stats.NeedsRenewal))
	}
	if stats.ExpiringSoon > 5 {
		issues = append(issues, fmt.Sprintf("%d clients expiring within 7 days", stats.ExpiringSoon))
	}
	return issues, nil
}
