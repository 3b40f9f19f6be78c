package model

import (
	"context"
	"time"
)

type ClientId string

type PlanId string

type ClientStatus string

const (
	StatusActive       ClientStatus = "active"
	StatusNeedsRenewal ClientStatus = "needs_renewal"
	StatusCancelled    ClientStatus = "cancelled"
	StatusSuspended    ClientStatus = "suspended"
)

func (s ClientStatus) Valid() bool {
	switch s {
	case StatusActive, StatusNeedsRenewal, StatusCancelled, StatusSuspended:
		return true
	}
	return false
}

type Plan struct {
	Id             PlanId  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	DurationMonths int     `json:"durationMonths"`
	Price          float64 `json:"price"`
	IsActive       bool    `json:"isActive"`
}

type PaymentInfo struct {
	Method      string     `json:"method,omitempty"`
	LastPayment *time.Time `json:"lastPayment,omitempty"`
	NextPayment *time.Time `json:"nextPayment,omitempty"`
}

type Client struct {
	Id           ClientId     `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	PlanId       PlanId       `json:"planId"`
	PurchaseDate time.Time    `json:"purchaseDate"`
	RenewalDate  time.Time    `json:"renewalDate"`
	Status       ClientStatus `json:"status"`
	Notes        string       `json:"notes,omitempty"`
	Payment      PaymentInfo  `json:"paymentInfo"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type HistoryAction string

const (
	ActionCreated      HistoryAction = "CREATED"
	ActionStatusChange HistoryAction = "STATUS_CHANGE"
	ActionRenewal      HistoryAction = "RENEWAL"
	ActionCancellation HistoryAction = "CANCELLATION"
	ActionSuspension   HistoryAction = "SUSPENSION"
	ActionReactivation HistoryAction = "REACTIVATION"
)

type HistoryEntry struct {
	Id        int64          `json:"id"`
	ClientId  ClientId       `json:"clientId"`
	Action    HistoryAction  `json:"action"`
	Details   map[string]any `json:"details"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
}

// ClientFilter narrows FindClients and CountClients. Zero value matches every client.
type ClientFilter struct {
	Statuses      []ClientStatus
	RenewalBefore *time.Time
}

func (f ClientFilter) Matches(client Client) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, status := range f.Statuses {
			if client.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.RenewalBefore != nil && client.RenewalDate.After(*f.RenewalBefore) {
		return false
	}
	return true
}

type ClientStorage interface {
	CreatePlan(ctx context.Context, plan Plan) (PlanId, error)
	GetPlan(ctx context.Context, id PlanId) (Plan, error)
	ListPlans(ctx context.Context) ([]Plan, error)
	CreateClient(ctx context.Context, client Client) (ClientId, error)
	GetClient(ctx context.Context, id ClientId) (Client, error)
	UpdateClient(ctx context.Context, client Client) error
	FindClients(ctx context.Context, filter ClientFilter) ([]Client, error)
	CountClients(ctx context.Context, filter ClientFilter) (int, error)
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	GetHistory(ctx context.Context, id ClientId) ([]HistoryEntry, error)
}
