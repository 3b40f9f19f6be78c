package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"nuvelon-admin/internal/model/sqlquery"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// invalidTextRepresentation is returned by postgres when an id is not a valid uuid.
const invalidTextRepresentation = "22P02"

func notFound(err error) error {
	var pqErr *pq.Error
	if errors.Is(err, sql.ErrNoRows) || (errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation) {
		return ErrorNotFound
	}
	return err
}

type sqlClientStorage struct {
	database *sql.DB
	rwLock   *sync.RWMutex
	builder  sq.StatementBuilderType
}

func NewSQLClientStorage(ctx context.Context, driverName, dataSourceName string) (*sqlClientStorage, error) {
	database, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed opening database: %w", err)
	}

	if err = database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed checking database availibility: %w", err)
	}

	storage := newSQLClientStorage(database)
	if err = storage.init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed initializing storage: %w", err)
	}
	return storage, nil
}

func newSQLClientStorage(database *sql.DB) *sqlClientStorage {
	return &sqlClientStorage{
		database: database,
		rwLock:   &sync.RWMutex{},
		builder:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (st *sqlClientStorage) Close() error {
	return st.database.Close()
}

func (st *sqlClientStorage) CreatePlan(ctx context.Context, plan Plan) (PlanId, error) {
	if plan.Id == "" {
		plan.Id = PlanId(uuid.NewString())
	}
	_, err := st.exec(
		ctx,
		sqlquery.NewPlan,
		string(plan.Id),
		plan.Name,
		plan.Description,
		plan.DurationMonths,
		plan.Price,
		plan.IsActive,
	)
	if err != nil {
		return "", fmt.Errorf("failed creating plan %s: %w", plan.Name, err)
	}
	return plan.Id, nil
}

func (st *sqlClientStorage) GetPlan(ctx context.Context, id PlanId) (Plan, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	plan := Plan{}
	err := scanPlan(st.database.QueryRowContext(ctx, sqlquery.GetPlan, string(id)), &plan)
	if err != nil {
		err = notFound(err)
		return Plan{}, fmt.Errorf("failed getting plan by id %s: %w", id, err)
	}
	return plan, nil
}

func (st *sqlClientStorage) ListPlans(ctx context.Context) ([]Plan, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	rows, err := st.database.QueryContext(ctx, sqlquery.ListPlans)
	if err != nil {
		return nil, fmt.Errorf("failed listing plans: %w", err)
	}
	defer rows.Close()

	plans := make([]Plan, 0)
	for rows.Next() {
		plan := Plan{}
		if err := scanPlan(rows, &plan); err != nil {
			return nil, fmt.Errorf("failed scanning plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed listing plans: %w", err)
	}
	return plans, nil
}

func (st *sqlClientStorage) CreateClient(ctx context.Context, client Client) (ClientId, error) {
	if client.Id == "" {
		client.Id = ClientId(uuid.NewString())
	}
	now := time.Now()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	_, err := st.exec(
		ctx,
		sqlquery.NewClient,
		string(client.Id),
		client.Name,
		client.Email,
		client.Phone,
		string(client.PlanId),
		client.PurchaseDate,
		client.RenewalDate,
		string(client.Status),
		client.Notes,
		client.Payment.Method,
		nullTime(client.Payment.LastPayment),
		nullTime(client.Payment.NextPayment),
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed creating client %s: %w", client.Name, err)
	}
	return client.Id, nil
}

func (st *sqlClientStorage) GetClient(ctx context.Context, id ClientId) (Client, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	client := Client{}
	err := scanClient(st.database.QueryRowContext(ctx, sqlquery.GetClient, string(id)), &client)
	if err != nil {
		err = notFound(err)
		return Client{}, fmt.Errorf("failed getting client by id %s: %w", id, err)
	}
	return client, nil
}

func (st *sqlClientStorage) UpdateClient(ctx context.Context, client Client) error {
	result, err := st.exec(
		ctx,
		sqlquery.UpdateClient,
		client.Name,
		client.Email,
		client.Phone,
		string(client.PlanId),
		client.PurchaseDate,
		client.RenewalDate,
		string(client.Status),
		client.Notes,
		client.Payment.Method,
		nullTime(client.Payment.LastPayment),
		nullTime(client.Payment.NextPayment),
		time.Now(),
		string(client.Id),
	)
	if err != nil {
		return fmt.Errorf("failed updating client with id %s: %w", client.Id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed updating client with id %s: %w", client.Id, err)
	}
	if affected == 0 {
		return fmt.Errorf("failed updating client with id %s: %w", client.Id, ErrorNotFound)
	}
	return nil
}

func (st *sqlClientStorage) FindClients(ctx context.Context, filter ClientFilter) ([]Client, error) {
	query, args, err := applyClientFilter(st.builder.Select(sqlquery.ClientColumns).From("clients"), filter).
		OrderBy("renewal_date", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed building find clients query: %w", err)
	}

	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	rows, err := st.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed finding clients: %w", err)
	}
	defer rows.Close()

	clients := make([]Client, 0)
	for rows.Next() {
		client := Client{}
		if err := scanClient(rows, &client); err != nil {
			return nil, fmt.Errorf("failed scanning client: %w", err)
		}
		clients = append(clients, client)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed finding clients: %w", err)
	}
	return clients, nil
}

func (st *sqlClientStorage) CountClients(ctx context.Context, filter ClientFilter) (int, error) {
	query, args, err := applyClientFilter(st.builder.Select("COUNT(*)").From("clients"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed building count clients query: %w", err)
	}

	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	var count int
	if err = st.database.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed counting clients: %w", err)
	}
	return count, nil
}

func (st *sqlClientStorage) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed encoding history details: %w", err)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	_, err = st.exec(
		ctx,
		sqlquery.NewHistoryEntry,
		string(entry.ClientId),
		string(entry.Action),
		string(details),
		entry.Actor,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed appending %s history for client %s: %w", entry.Action, entry.ClientId, err)
	}
	return nil
}

func (st *sqlClientStorage) GetHistory(ctx context.Context, id ClientId) ([]HistoryEntry, error) {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()

	rows, err := st.database.QueryContext(ctx, sqlquery.GetHistory, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed getting history of client %s: %w", id, err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		entry := HistoryEntry{}
		var details []byte
		err := rows.Scan(&entry.Id, &entry.ClientId, &entry.Action, &details, &entry.Actor, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed scanning history entry: %w", err)
		}
		if err = json.Unmarshal(details, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed decoding history details: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed getting history of client %s: %w", id, err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(sc scanner, plan *Plan) error {
	return sc.Scan(
		&plan.Id,
		&plan.Name,
		&plan.Description,
		&plan.DurationMonths,
		&plan.Price,
		&plan.IsActive,
	)
}

func scanClient(sc scanner, client *Client) error {
	var lastPayment, nextPayment sql.NullTime
	err := sc.Scan(
		&client.Id,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.PlanId,
		&client.PurchaseDate,
		&client.RenewalDate,
		&client.Status,
		&client.Notes,
		&client.Payment.Method,
		&lastPayment,
		&nextPayment,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if lastPayment.Valid {
		client.Payment.LastPayment = &lastPayment.Time
	}
	if nextPayment.Valid {
		client.Payment.NextPayment = &nextPayment.Time
	}
	return nil
}

func applyClientFilter(query sq.SelectBuilder, filter ClientFilter) sq.SelectBuilder {
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		query = query.Where(sq.Eq{"status": statuses})
	}
	if filter.RenewalBefore != nil {
		query = query.Where(sq.LtOrEq{"renewal_date": *filter.RenewalBefore})
	}
	return query
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (st *sqlClientStorage) exec(ctx context.Context, query string, params ...any) (sql.Result, error) {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	return st.database.ExecContext(ctx, query, params...)
}

func (st *sqlClientStorage) transact(ctx context.Context, transactionFunc func(context.Context, *sql.Tx) error) error {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	tx, err := st.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = transactionFunc(ctx, tx)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (st *sqlClientStorage) init(ctx context.Context) error {
	return st.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlquery.CreateSchema); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
		return nil
	})
}
