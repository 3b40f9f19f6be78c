package notification

import (
	"context"
	"fmt"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/model"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Type string

const (
	TypeRenewal Type = "renewal"
	TypeSystem  Type = "system"
	TypeAlert   Type = "alert"
)

type RecipientType string

const (
	RecipientEmail RecipientType = "email"
	RecipientPhone RecipientType = "phone"
	RecipientAdmin RecipientType = "admin"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityColors = map[Severity]string{
	SeverityLow:      "#10b981",
	SeverityMedium:   "#f59e0b",
	SeverityHigh:     "#ef4444",
	SeverityCritical: "#7c2d12",
}

func (s Severity) Valid() bool {
	_, ok := severityColors[s]
	return ok
}

type Notification struct {
	Id            string         `json:"id"`
	Type          Type           `json:"type"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Recipient     string         `json:"recipient"`
	RecipientType RecipientType  `json:"recipientType"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	SentAt        *time.Time     `json:"sentAt,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type Config struct {
	AdminEmails []string
	MaxHistory  int
}

type Dispatcher struct {
	transport   Transport
	security    audit.Logger
	adminEmails []string
	history     *history
	now         func() time.Time
}

func NewDispatcher(transport Transport, security audit.Logger, cfg Config) *Dispatcher {
	return &Dispatcher{
		transport:   transport,
		security:    security,
		adminEmails: append([]string(nil), cfg.AdminEmails...),
		history:     newHistory(cfg.MaxHistory),
		now:         time.Now,
	}
}

func (d *Dispatcher) AdminEmails() []string {
	return append([]string(nil), d.adminEmails...)
}

func renewalUrgency(days int) (label, action string) {
	switch {
	case days <= 0:
		return "URGENT", "Your plan has expired! Renew now to keep using our services."
	case days == 1:
		return "IMPORTANT", "Your plan expires tomorrow! Renew today to avoid a service interruption."
	case days <= 3:
		return "ATTENTION", fmt.Sprintf("Your plan expires in %d days. Renew now to continue without interruptions.", days)
	default:
		return "REMINDER", fmt.Sprintf("Your plan expires in %d days. Consider renewing early.", days)
	}
}

func renewalColor(days int) string {
	switch {
	case days <= 0:
		return "#dc2626"
	case days <= 3:
		return "#ea580c"
	default:
		return "#2563eb"
	}
}

// SendRenewal delivers a renewal reminder over every contact channel the client has.
// A client without email or phone still gets a history record addressed to the admin.
func (d *Dispatcher) SendRenewal(ctx context.Context, n model.RenewalNotification) error {
	if err := d.sendRenewal(ctx, n); err != nil {
		log.WithFields(log.Fields{
			"clientId": n.ClientId,
			"error":    err,
		}).Error("Error sending renewal notification")
		d.security.Log(audit.Event{
			Event: "NOTIFICATION_FAILED",
			IP:    audit.SystemIP,
			Details: map[string]any{
				"type":       string(TypeRenewal),
				"clientId":   string(n.ClientId),
				"clientName": n.ClientName,
				"error":      err.Error(),
			},
			Success: false,
			Error:   err.Error(),
		})
		return err
	}
	return nil
}

func (d *Dispatcher) sendRenewal(ctx context.Context, n model.RenewalNotification) error {
	urgency, action := renewalUrgency(n.DaysUntilRenewal)
	view := renewalView{
		ClientName:  n.ClientName,
		PlanName:    n.PlanName,
		RenewalDate: n.RenewalDate,
		Days:        n.DaysUntilRenewal,
		Urgency:     urgency,
		Action:      action,
		Color:       renewalColor(n.DaysUntilRenewal),
	}

	if n.Email != "" {
		body, err := render(renewalEmailBody, view)
		if err != nil {
			return fmt.Errorf("failed rendering renewal email body: %w", err)
		}
		html, err := render(renewalEmailHTML, view)
		if err != nil {
			return fmt.Errorf("failed rendering renewal email html: %w", err)
		}
		err = d.transport.SendEmail(ctx, Email{
			To:      n.Email,
			Subject: fmt.Sprintf("[%s] Renewal of plan %s - Nuvelon", urgency, n.PlanName),
			Body:    body,
			HTML:    html,
		})
		if err != nil {
			return fmt.Errorf("failed sending renewal email to %s: %w", n.Email, err)
		}
	}

	if n.Phone != "" {
		message, err := render(renewalSMS, view)
		if err != nil {
			return fmt.Errorf("failed rendering renewal sms: %w", err)
		}
		if err = d.transport.SendSMS(ctx, SMS{To: n.Phone, Message: message}); err != nil {
			return fmt.Errorf("failed sending renewal sms to %s: %w", n.Phone, err)
		}
	}

	recipient, recipientType := "admin", RecipientAdmin
	switch {
	case n.Email != "":
		recipient, recipientType = n.Email, RecipientEmail
	case n.Phone != "":
		recipient, recipientType = n.Phone, RecipientPhone
	}

	now := d.now()
	d.history.add(Notification{
		Id:            uuid.NewString(),
		Type:          TypeRenewal,
		Title:         fmt.Sprintf("Renewal of plan %s", n.PlanName),
		Message:       action,
		Recipient:     recipient,
		RecipientType: recipientType,
		Status:        StatusSent,
		CreatedAt:     now,
		SentAt:        &now,
		Metadata: map[string]any{
			"clientId":         string(n.ClientId),
			"clientName":       n.ClientName,
			"planName":         n.PlanName,
			"renewalDate":      n.RenewalDate,
			"daysUntilRenewal": n.DaysUntilRenewal,
		},
	})

	log.WithFields(log.Fields{
		"clientId": n.ClientId,
		"days":     n.DaysUntilRenewal,
	}).Infof("Renewal notification sent to %s", n.ClientName)
	return nil
}

func (d *Dispatcher) SendSystem(ctx context.Context, title, message string, recipients []string) error {
	html, err := render(systemEmailHTML, systemView{Title: title, Message: message})
	if err != nil {
		return fmt.Errorf("failed rendering system notification: %w", err)
	}

	for _, recipient := range recipients {
		err := d.transport.SendEmail(ctx, Email{
			To:      recipient,
			Subject: fmt.Sprintf("[SYSTEM] %s - Nuvelon", title),
			Body:    message,
			HTML:    html,
		})
		if err != nil {
			log.WithFields(log.Fields{
				"recipient": recipient,
				"error":     err,
			}).Error("Error sending system notification")
			return fmt.Errorf("failed sending system notification to %s: %w", recipient, err)
		}

		now := d.now()
		d.history.add(Notification{
			Id:            uuid.NewString(),
			Type:          TypeSystem,
			Title:         title,
			Message:       message,
			Recipient:     recipient,
			RecipientType: RecipientEmail,
			Status:        StatusSent,
			CreatedAt:     now,
			SentAt:        &now,
		})
	}

	log.Infof("System notification sent to %d recipients", len(recipients))
	return nil
}

func (d *Dispatcher) SendAlert(ctx context.Context, title, message string, severity Severity) error {
	if !severity.Valid() {
		return fmt.Errorf("unknown alert severity %q", severity)
	}

	label := fmt.Sprintf("[ALERT %s]", strings.ToUpper(string(severity)))
	alertMessage := fmt.Sprintf("%s %s", label, message)
	html, err := render(alertEmailHTML, alertView{
		Title:    title,
		Message:  message,
		Severity: string(severity),
		Color:    severityColors[severity],
	})
	if err != nil {
		return fmt.Errorf("failed rendering alert: %w", err)
	}

	for _, email := range d.adminEmails {
		err := d.transport.SendEmail(ctx, Email{
			To:      email,
			Subject: fmt.Sprintf("%s %s - Nuvelon", label, title),
			Body:    alertMessage,
			HTML:    html,
		})
		if err != nil {
			log.WithFields(log.Fields{
				"recipient": email,
				"severity":  severity,
				"error":     err,
			}).Error("Error sending alert")
			return fmt.Errorf("failed sending %s alert to %s: %w", severity, email, err)
		}

		now := d.now()
		d.history.add(Notification{
			Id:            uuid.NewString(),
			Type:          TypeAlert,
			Title:         title,
			Message:       alertMessage,
			Recipient:     email,
			RecipientType: RecipientEmail,
			Status:        StatusSent,
			CreatedAt:     now,
			SentAt:        &now,
			Metadata:      map[string]any{"severity": string(severity)},
		})
	}

	log.WithField("severity", severity).Infof("Alert sent to %d admins", len(d.adminEmails))
	return nil
}

// History returns up to limit of the newest notifications, oldest first.
func (d *Dispatcher) History(limit int) []Notification {
	return d.history.latest(limit)
}

func (d *Dispatcher) ByType(notificationType Type) []Notification {
	return d.history.filter(func(n Notification) bool { return n.Type == notificationType })
}

func (d *Dispatcher) ByRecipient(recipient string) []Notification {
	return d.history.filter(func(n Notification) bool { return n.Recipient == recipient })
}

func (d *Dispatcher) CleanupOlderThan(cutoff time.Time) int {
	return d.history.cleanupOlderThan(cutoff)
}
