package model

import "time"

type ClientStatusUpdate struct {
	ClientId  ClientId     `json:"clientId"`
	OldStatus ClientStatus `json:"oldStatus"`
	NewStatus ClientStatus `json:"newStatus"`
	Reason    string       `json:"reason"`
	UpdatedBy string       `json:"updatedBy"`
}

type RenewalNotification struct {
	ClientId         ClientId  `json:"clientId"`
	ClientName       string    `json:"clientName"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	PlanName         string    `json:"planName"`
	RenewalDate      time.Time `json:"renewalDate"`
	DaysUntilRenewal int       `json:"daysUntilRenewal"`
}

type ClientStatistics struct {
	TotalClients     int     `json:"totalClients"`
	ActiveClients    int     `json:"activeClients"`
	NeedsRenewal     int     `json:"needsRenewal"`
	CancelledClients int     `json:"cancelledClients"`
	SuspendedClients int     `json:"suspendedClients"`
	ExpiringSoon     int     `json:"expiringSoon"`
	MonthlyRevenue   float64 `json:"monthlyRevenue"`
}
