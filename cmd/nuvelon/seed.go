package main

import (
	"context"
	"fmt"
	"nuvelon-admin/internal/lifecycle"
	"nuvelon-admin/internal/model"
	"time"

	log "github.com/sirupsen/logrus"
)

const seedActor = "seed"

var defaultPlans = []model.Plan{
	{Name: "Monthly Basic", Description: "Essential games, email support, 1 device", DurationMonths: 1, Price: 29.90, IsActive: true},
	{Name: "Monthly Premium", Description: "Full catalog, priority support, 2 devices, 4K", DurationMonths: 1, Price: 49.90, IsActive: true},
	{Name: "Quarterly Basic", Description: "Essential games, 1 device, 10% off", DurationMonths: 3, Price: 79.90, IsActive: true},
	{Name: "Quarterly Premium", Description: "Full catalog, 2 devices, 4K, 10% off", DurationMonths: 3, Price: 129.90, IsActive: true},
	{Name: "Annual Basic", Description: "Essential games, 1 device, 20% off", DurationMonths: 12, Price: 299.90, IsActive: true},
	{Name: "Annual Pro", Description: "Full catalog, 24/7 support, 3 devices, 4K HDR, early access", DurationMonths: 12, Price: 499.90, IsActive: true},
}

type sampleClient struct {
	client model.Client
	plan   int
}

func sampleClients(now time.Time) []sampleClient {
	day := 24 * time.Hour
	return []sampleClient{
		{model.Client{Name: "João Silva", Email: "joao.silva@email.com", Phone: "+5511999999999", Notes: "VIP, always pays on time",
			PurchaseDate: now.AddDate(0, 0, -25), Payment: model.PaymentInfo{Method: "credit card"}}, 1},
		{model.Client{Name: "Maria Santos", Email: "maria.santos@email.com", Phone: "+5511888888888", Notes: "First purchase",
			PurchaseDate: now.AddDate(0, -3, 0).Add(2 * day)}, 2},
		{model.Client{Name: "Pedro Oliveira", Email: "pedro.oliveira@email.com", PurchaseDate: now.AddDate(0, -2, 0)}, 0},
		{model.Client{Name: "Ana Costa", Phone: "+5521977777777", PurchaseDate: now.AddDate(0, -1, 0), Status: model.StatusSuspended,
			Notes: "Payment disputed"}, 3},
		{model.Client{Name: "Lucas Ferreira", Email: "lucas.ferreira@email.com", PurchaseDate: now.AddDate(0, -4, 0),
			Payment: model.PaymentInfo{Method: "pix"}}, 5},
	}
}

// seed creates the default plans and sample clients. It does nothing when plans already exist.
func seed(ctx context.Context, storage model.ClientStorage, engine *lifecycle.Engine) error {
	existing, err := storage.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("failed listing plans: %w", err)
	}
	if len(existing) > 0 {
		log.Infof("Found %d plans, skipping seed", len(existing))
		return nil
	}

	planIds := make([]model.PlanId, 0, len(defaultPlans))
	for _, plan := range defaultPlans {
		id, err := storage.CreatePlan(ctx, plan)
		if err != nil {
			return fmt.Errorf("failed seeding plan %s: %w", plan.Name, err)
		}
		planIds = append(planIds, id)
	}
	log.Infof("Created %d plans", len(planIds))

	samples := sampleClients(time.Now())
	for _, sample := range samples {
		sample.client.PlanId = planIds[sample.plan]
		if _, err := engine.CreateClient(ctx, sample.client, seedActor); err != nil {
			return fmt.Errorf("failed seeding client %s: %w", sample.client.Name, err)
		}
	}
	log.Infof("Created %d sample clients", len(samples))
	return nil
}
