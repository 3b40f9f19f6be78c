package data

import "time"

type PlanData struct {
	Id             string
	Name           string
	DurationMonths int
	Price          float64
}

type ClientRequestData struct {
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	PlanId        string     `json:"planId"`
	PurchaseDate  *time.Time `json:"purchaseDate,omitempty"`
	Status        string     `json:"status,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
}

var InitialPlans = []PlanData{
	{"6f1c2f52-54c1-4a4e-9d59-0f4cbe8a9d01", "Monthly Basic", 1, 29.90},
	{"6f1c2f52-54c1-4a4e-9d59-0f4cbe8a9d02", "Quarterly Premium", 3, 129.90},
	{"6f1c2f52-54c1-4a4e-9d59-0f4cbe8a9d03", "Annual Pro", 12, 499.90},
}

func purchasedAt(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return &t
}

var InitialClients = []ClientRequestData{
	{
		Name:          "João Silva",
		Email:         "joao.silva@email.com",
		Phone:         "+5511999999999",
		PlanId:        InitialPlans[0].Id,
		PurchaseDate:  purchasedAt(2025, time.January, 31),
		PaymentMethod: "credit card",
	},
	{
		Name:         "Maria Santos",
		Email:        "maria.santos@email.com",
		PlanId:       InitialPlans[1].Id,
		PurchaseDate: purchasedAt(2024, time.September, 15),
		Notes:        "first purchase",
	},
}

var CreatedClient = ClientRequestData{
	Name:   "Pedro Oliveira",
	Phone:  "+5521977777777",
	PlanId: InitialPlans[2].Id,
}
