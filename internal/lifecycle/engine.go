package lifecycle

import (
	"context"
	"fmt"
	"math"
	"nuvelon-admin/internal/audit"
	"nuvelon-admin/internal/model"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	SystemActor = "system"
	// RenewalWindow is how far ahead a renewal date makes a client need renewal.
	RenewalWindow = 7 * 24 * time.Hour
	day           = 24 * time.Hour
)

type Engine struct {
	storage  model.ClientStorage
	security audit.Logger
	now      func() time.Time
}

func NewEngine(storage model.ClientStorage, security audit.Logger) *Engine {
	return &Engine{
		storage:  storage,
		security: security,
		now:      time.Now,
	}
}

// DaysUntil rounds the distance to renewal up to whole days, so anything overdue is <= 0.
func DaysUntil(renewal, now time.Time) int {
	return int(math.Ceil(float64(renewal.Sub(now)) / float64(day)))
}

func (e *Engine) UpdateClientStatuses(ctx context.Context) ([]model.ClientStatusUpdate, error) {
	now := e.now()
	clients, err := e.storage.FindClients(ctx, model.ClientFilter{Statuses: []model.ClientStatus{model.StatusActive}})
	if err != nil {
		return nil, fmt.Errorf("failed finding active clients: %w", err)
	}

	updates := make([]model.ClientStatusUpdate, 0)
	for _, client := range clients {
		days := DaysUntil(client.RenewalDate, now)
		var reason string
		switch {
		case days <= 0:
			reason = "plan expired"
		case days <= 7:
			reason = fmt.Sprintf("renews in %d days", days)
		default:
			continue
		}

		oldStatus := client.Status
		client.Status = model.StatusNeedsRenewal
		if err := e.storage.UpdateClient(ctx, client); err != nil {
			return updates, fmt.Errorf("failed updating status of client %s: %w", client.Id, err)
		}
		err := e.storage.AppendHistory(ctx, model.HistoryEntry{
			ClientId: client.Id,
			Action:   model.ActionStatusChange,
			Details: map[string]any{
				"oldStatus": string(oldStatus),
				"newStatus": string(client.Status),
				"reason":    reason,
				"automated": true,
			},
			Actor:     SystemActor,
			Timestamp: now,
		})
		if err != nil {
			return updates, fmt.Errorf("failed recording status change of client %s: %w", client.Id, err)
		}

		updates = append(updates, model.ClientStatusUpdate{
			ClientId:  client.Id,
			OldStatus: oldStatus,
			NewStatus: client.Status,
			Reason:    reason,
			UpdatedBy: SystemActor,
		})
	}

	log.Infof("Updated %d client statuses", len(updates))
	return updates, nil
}

func remindOn(days int) bool {
	return days <= 0 || days == 1 || days == 3 || days == 7
}

// GenerateRenewalNotifications only selects who is due a reminder today; delivery is up to the caller.
func (e *Engine) GenerateRenewalNotifications(ctx context.Context) ([]model.RenewalNotification, error) {
	now := e.now()
	horizon := now.Add(RenewalWindow)
	clients, err := e.storage.FindClients(ctx, model.ClientFilter{
		Statuses:      []model.ClientStatus{model.StatusActive, model.StatusNeedsRenewal},
		RenewalBefore: &horizon,
	})
	if err != nil {
		return nil, fmt.Errorf("failed finding clients due for renewal: %w", err)
	}

	plans := make(map[model.PlanId]model.Plan)
	notifications := make([]model.RenewalNotification, 0)
	for _, client := range clients {
		days := DaysUntil(client.RenewalDate, now)
		if !remindOn(days) {
			continue
		}

		plan, ok := plans[client.PlanId]
		if !ok {
			plan, err = e.storage.GetPlan(ctx, client.PlanId)
			if err != nil {
				return nil, fmt.Errorf("failed getting plan of client %s: %w", client.Id, err)
			}
			plans[client.PlanId] = plan
		}

		notifications = append(notifications, model.RenewalNotification{
			ClientId:         client.Id,
			ClientName:       client.Name,
			Email:            client.Email,
			Phone:            client.Phone,
			PlanName:         plan.Name,
			RenewalDate:      client.RenewalDate,
			DaysUntilRenewal: days,
		})
	}

	log.Infof("Generated %d renewal notifications", len(notifications))
	return notifications, nil
}

func (e *Engine) CreateClient(ctx context.Context, client model.Client, actor string) (model.Client, error) {
	plan, err := e.storage.GetPlan(ctx, client.PlanId)
	if err != nil {
		return model.Client{}, fmt.Errorf("failed creating client %s: %w", client.Name, err)
	}

	now := e.now()
	if client.PurchaseDate.IsZero() {
		client.PurchaseDate = now
	}
	client.RenewalDate = client.PurchaseDate.AddDate(0, plan.DurationMonths, 0)
	if client.Status == "" {
		client.Status = model.StatusActive
	}

	id, err := e.storage.CreateClient(ctx, client)
	if err != nil {
		return model.Client{}, fmt.Errorf("failed creating client %s: %w", client.Name, err)
	}
	client.Id = id

	err = e.storage.AppendHistory(ctx, model.HistoryEntry{
		ClientId: id,
		Action:   model.ActionCreated,
		Details: map[string]any{
			"plan":        string(plan.Id),
			"status":      string(client.Status),
			"renewalDate": client.RenewalDate,
		},
		Actor:     actor,
		Timestamp: now,
	})
	if err != nil {
		return model.Client{}, fmt.Errorf("failed recording creation of client %s: %w", id, err)
	}

	e.security.Log(audit.Event{
		Event:   "CLIENT_CREATED",
		UserId:  actor,
		IP:      audit.SystemIP,
		Details: map[string]any{"clientId": string(id), "clientName": client.Name},
		Success: true,
	})
	return e.storage.GetClient(ctx, id)
}

func (e *Engine) GetClient(ctx context.Context, id model.ClientId) (model.Client, error) {
	return e.storage.GetClient(ctx, id)
}

func (e *Engine) ClientHistory(ctx context.Context, id model.ClientId) ([]model.HistoryEntry, error) {
	if _, err := e.storage.GetClient(ctx, id); err != nil {
		return nil, err
	}
	return e.storage.GetHistory(ctx, id)
}

func (e *Engine) RenewClient(ctx context.Context, id model.ClientId, planId model.PlanId, actor string) (model.Client, error) {
	client, err := e.storage.GetClient(ctx, id)
	if err != nil {
		return model.Client{}, fmt.Errorf("failed renewing client: %w", err)
	}
	plan, err := e.storage.GetPlan(ctx, planId)
	if err != nil {
		return model.Client{}, fmt.Errorf("failed renewing client %s: %w", id, err)
	}

	now := e.now()
	oldStatus, oldPlan, oldRenewalDate := client.Status, client.PlanId, client.RenewalDate
	renewalDate := now.AddDate(0, plan.DurationMonths, 0)

	client.PlanId = plan.Id
	client.Status = model.StatusActive
	client.PurchaseDate = now
	client.RenewalDate = renewalDate
	lastPayment, nextPayment := now, renewalDate
	client.Payment.LastPayment = &lastPayment
	client.Payment.NextPayment = &nextPayment

	if err = e.storage.UpdateClient(ctx, client); err != nil {
		return model.Client{}, fmt.Errorf("failed renewing client %s: %w", id, err)
	}
	err = e.storage.AppendHistory(ctx, model.HistoryEntry{
		ClientId: id,
		Action:   model.ActionRenewal,
		Details: map[string]any{
			"oldPlan":        string(oldPlan),
			"newPlan":        string(plan.Id),
			"oldStatus":      string(oldStatus),
			"newStatus":      string(client.Status),
			"oldRenewalDate": oldRenewalDate,
			"newRenewalDate": renewalDate,
			"renewedBy":      actor,
		},
		Actor:     actor,
		Timestamp: now,
	})
	if err != nil {
		return model.Client{}, fmt.Errorf("failed recording renewal of client %s: %w", id, err)
	}

	e.security.Log(audit.Event{
		Event:  "CLIENT_RENEWED",
		UserId: actor,
		IP:     audit.SystemIP,
		Details: map[string]any{
			"clientId":       string(id),
			"clientName":     client.Name,
			"oldPlan":        string(oldPlan),
			"newPlan":        string(plan.Id),
			"oldRenewalDate": oldRenewalDate,
			"newRenewalDate": renewalDate,
		},
		Success: true,
	})
	log.WithField("clientId", id).Infof("Client %s renewed", client.Name)
	return client, nil
}

type statusChange struct {
	status    model.ClientStatus
	action    model.HistoryAction
	event     string
	actorKey  string
	reason    string
	hasReason bool
}

func (e *Engine) CancelClient(ctx context.Context, id model.ClientId, reason, actor string) (model.Client, error) {
	return e.changeStatus(ctx, id, actor, statusChange{
		status:    model.StatusCancelled,
		action:    model.ActionCancellation,
		event:     "CLIENT_CANCELLED",
		actorKey:  "cancelledBy",
		reason:    reason,
		hasReason: true,
	})
}

func (e *Engine) SuspendClient(ctx context.Context, id model.ClientId, reason, actor string) (model.Client, error) {
	return e.changeStatus(ctx, id, actor, statusChange{
		status:    model.StatusSuspended,
		action:    model.ActionSuspension,
		event:     "CLIENT_SUSPENDED",
		actorKey:  "suspendedBy",
		reason:    reason,
		hasReason: true,
	})
}

func (e *Engine) ReactivateClient(ctx context.Context, id model.ClientId, actor string) (model.Client, error) {
	return e.changeStatus(ctx, id, actor, statusChange{
		status:   model.StatusActive,
		action:   model.ActionReactivation,
		event:    "CLIENT_REACTIVATED",
		actorKey: "reactivatedBy",
	})
}

// changeStatus assigns the status unconditionally; any status may move to any other.
func (e *Engine) changeStatus(ctx context.Context, id model.ClientId, actor string, change statusChange) (model.Client, error) {
	client, err := e.storage.GetClient(ctx, id)
	if err != nil {
		return model.Client{}, fmt.Errorf("failed changing client status to %s: %w", change.status, err)
	}

	oldStatus := client.Status
	client.Status = change.status
	if err = e.storage.UpdateClient(ctx, client); err != nil {
		return model.Client{}, fmt.Errorf("failed changing status of client %s to %s: %w", id, change.status, err)
	}

	details := map[string]any{
		"oldStatus":     string(oldStatus),
		"newStatus":     string(change.status),
		change.actorKey: actor,
	}
	eventDetails := map[string]any{
		"clientId":   string(id),
		"clientName": client.Name,
	}
	if change.hasReason {
		details["reason"] = change.reason
		eventDetails["reason"] = change.reason
	}

	err = e.storage.AppendHistory(ctx, model.HistoryEntry{
		ClientId:  id,
		Action:    change.action,
		Details:   details,
		Actor:     actor,
		Timestamp: e.now(),
	})
	if err != nil {
		return model.Client{}, fmt.Errorf("failed recording %s of client %s: %w", change.action, id, err)
	}

	e.security.Log(audit.Event{
		Event:   change.event,
		UserId:  actor,
		IP:      audit.SystemIP,
		Details: eventDetails,
		Success: true,
	})
	log.WithFields(log.Fields{
		"clientId":  id,
		"oldStatus": oldStatus,
		"newStatus": change.status,
	}).Info("Client status changed")
	return client, nil
}

type countQuery struct {
	target *int
	filter model.ClientFilter
}

// Statistics counts clients per status. MonthlyRevenue adds the full plan price of every
// active client whatever the plan duration.
func (e *Engine) Statistics(ctx context.Context) (model.ClientStatistics, error) {
	stats := model.ClientStatistics{}
	horizon := e.now().Add(RenewalWindow)
	queries := []countQuery{
		{&stats.TotalClients, model.ClientFilter{}},
		{&stats.ActiveClients, model.ClientFilter{Statuses: []model.ClientStatus{model.StatusActive}}},
		{&stats.NeedsRenewal, model.ClientFilter{Statuses: []model.ClientStatus{model.StatusNeedsRenewal}}},
		{&stats.CancelledClients, model.ClientFilter{Statuses: []model.ClientStatus{model.StatusCancelled}}},
		{&stats.SuspendedClients, model.ClientFilter{Statuses: []model.ClientStatus{model.StatusSuspended}}},
		{&stats.ExpiringSoon, model.ClientFilter{
			Statuses:      []model.ClientStatus{model.StatusActive, model.StatusNeedsRenewal},
			RenewalBefore: &horizon,
		}},
	}
	for _, query := range queries {
		count, err := e.storage.CountClients(ctx, query.filter)
		if err != nil {
			return model.ClientStatistics{}, fmt.Errorf("failed computing client statistics: %w", err)
		}
		*query.target = count
	}

	active, err := e.storage.FindClients(ctx, model.ClientFilter{Statuses: []model.ClientStatus{model.StatusActive}})
	if err != nil {
		return model.ClientStatistics{}, fmt.Errorf("failed computing monthly revenue: %w", err)
	}
	plans, err := e.storage.ListPlans(ctx)
	if err != nil {
		return model.ClientStatistics{}, fmt.Errorf("failed computing monthly revenue: %w", err)
	}
	prices := make(map[model.PlanId]float64, len(plans))
	for _, plan := range plans {
		prices[plan.Id] = plan.Price
	}
	for _, client := range active {
		stats.MonthlyRevenue += prices[client.PlanId]
	}
	return stats, nil
}
