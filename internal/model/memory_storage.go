package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryClientStorage keeps everything in process memory. Records are copied on the way in and out.
type memoryClientStorage struct {
	rwLock    *sync.RWMutex
	plans     map[PlanId]Plan
	clients   map[ClientId]Client
	history   map[ClientId][]HistoryEntry
	historyId int64
}

func NewMemoryClientStorage() *memoryClientStorage {
	return &memoryClientStorage{
		rwLock:  &sync.RWMutex{},
		plans:   make(map[PlanId]Plan),
		clients: make(map[ClientId]Client),
		history: make(map[ClientId][]HistoryEntry),
	}
}

func (st *memoryClientStorage) CreatePlan(_ context.Context, plan Plan) (PlanId, error) {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	if plan.Id == "" {
		plan.Id = PlanId(uuid.NewString())
	}
	if _, ok := st.plans[plan.Id]; ok {
		return "", fmt.Errorf("failed creating plan %s: duplicate id %s", plan.Name, plan.Id)
	}
	st.plans[plan.Id] = plan
	return plan.Id, nil
}

func (st *memoryClientStorage) GetPlan(_ context.Context, id PlanId) (Plan, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	plan, ok := st.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("failed getting plan by id %s: %w", id, ErrorNotFound)
	}
	return plan, nil
}

func (st *memoryClientStorage) ListPlans(_ context.Context) ([]Plan, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	plans := make([]Plan, 0, len(st.plans))
	for _, plan := range st.plans {
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].DurationMonths != plans[j].DurationMonths {
			return plans[i].DurationMonths < plans[j].DurationMonths
		}
		return plans[i].Price < plans[j].Price
	})
	return plans, nil
}

func (st *memoryClientStorage) CreateClient(_ context.Context, client Client) (ClientId, error) {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	if client.Id == "" {
		client.Id = ClientId(uuid.NewString())
	}
	if _, ok := st.clients[client.Id]; ok {
		return "", fmt.Errorf("failed creating client %s: duplicate id %s", client.Name, client.Id)
	}
	if _, ok := st.plans[client.PlanId]; !ok {
		return "", fmt.Errorf("failed creating client %s: plan %s: %w", client.Name, client.PlanId, ErrorNotFound)
	}
	now := time.Now()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now
	st.clients[client.Id] = copyClient(client)
	return client.Id, nil
}

func (st *memoryClientStorage) GetClient(_ context.Context, id ClientId) (Client, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	client, ok := st.clients[id]
	if !ok {
		return Client{}, fmt.Errorf("failed getting client by id %s: %w", id, ErrorNotFound)
	}
	return copyClient(client), nil
}

func (st *memoryClientStorage) UpdateClient(_ context.Context, client Client) error {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	if _, ok := st.clients[client.Id]; !ok {
		return fmt.Errorf("failed updating client with id %s: %w", client.Id, ErrorNotFound)
	}
	client.UpdatedAt = time.Now()
	st.clients[client.Id] = copyClient(client)
	return nil
}

func (st *memoryClientStorage) FindClients(_ context.Context, filter ClientFilter) ([]Client, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	clients := make([]Client, 0)
	for _, client := range st.clients {
		if filter.Matches(client) {
			clients = append(clients, copyClient(client))
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		if !clients[i].RenewalDate.Equal(clients[j].RenewalDate) {
			return clients[i].RenewalDate.Before(clients[j].RenewalDate)
		}
		return clients[i].Id < clients[j].Id
	})
	return clients, nil
}

func (st *memoryClientStorage) CountClients(_ context.Context, filter ClientFilter) (int, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	count := 0
	for _, client := range st.clients {
		if filter.Matches(client) {
			count++
		}
	}
	return count, nil
}

func (st *memoryClientStorage) AppendHistory(_ context.Context, entry HistoryEntry) error {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	if _, ok := st.clients[entry.ClientId]; !ok {
		return fmt.Errorf("failed appending %s history for client %s: %w", entry.Action, entry.ClientId, ErrorNotFound)
	}
	st.historyId++
	entry.Id = st.historyId
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	st.history[entry.ClientId] = append(st.history[entry.ClientId], entry)
	return nil
}

func (st *memoryClientStorage) GetHistory(_ context.Context, id ClientId) ([]HistoryEntry, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	entries := make([]HistoryEntry, len(st.history[id]))
	copy(entries, st.history[id])
	return entries, nil
}

func copyClient(client Client) Client {
	if client.Payment.LastPayment != nil {
		lastPayment := *client.Payment.LastPayment
		client.Payment.LastPayment = &lastPayment
	}
	if client.Payment.NextPayment != nil {
		nextPayment := *client.Payment.NextPayment
		client.Payment.NextPayment = &nextPayment
	}
	return client
}
