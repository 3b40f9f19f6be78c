package sqlquery

import "time"

const (
	CreateSchema = `CREATE TABLE IF NOT EXISTS plans (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	duration_months INTEGER NOT NULL CHECK (duration_months BETWEEN 1 AND 60),
	price NUMERIC(10, 2) NOT NULL CHECK (price >= 0),
	is_active BOOLEAN NOT NULL DEFAULT true
);
CREATE TABLE IF NOT EXISTS clients (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	plan_id UUID NOT NULL REFERENCES plans (id),
	purchase_date TIMESTAMPTZ NOT NULL,
	renewal_date TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	payment_method TEXT NOT NULL DEFAULT '',
	last_payment TIMESTAMPTZ,
	next_payment TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS clients_status_idx ON clients (status);
CREATE INDEX IF NOT EXISTS clients_renewal_date_idx ON clients (renewal_date);
CREATE TABLE IF NOT EXISTS client_history (
	id BIGSERIAL PRIMARY KEY,
	client_id UUID NOT NULL REFERENCES clients (id),
	action TEXT NOT NULL,
	details JSONB NOT NULL DEFAULT '{}',
	actor TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS client_history_client_idx ON client_history (client_id, created_at DESC)`

	NewPlan   = "INSERT INTO plans (id, name, description, duration_months, price, is_active) VALUES ($1, $2, $3, $4, $5, $6)"
	GetPlan   = "SELECT id, name, description, duration_months, price, is_active FROM plans WHERE id = $1"
	ListPlans = "SELECT id, name, description, duration_months, price, is_active FROM plans ORDER BY duration_months, price"

	NewClient = `INSERT INTO clients (id, name, email, phone, plan_id, purchase_date, renewal_date, status, notes,
	payment_method, last_payment, next_payment, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	GetClient    = "SELECT " + ClientColumns + " FROM clients WHERE id = $1"
	UpdateClient = `UPDATE clients SET name = $1, email = $2, phone = $3, plan_id = $4, purchase_date = $5,
	renewal_date = $6, status = $7, notes = $8, payment_method = $9, last_payment = $10, next_payment = $11,
	updated_at = $12 WHERE id = $13`
	ClientColumns = "id, name, email, phone, plan_id, purchase_date, renewal_date, status, notes, " +
		"payment_method, last_payment, next_payment, created_at, updated_at"

	NewHistoryEntry = "INSERT INTO client_history (client_id, action, details, actor, created_at) VALUES ($1, $2, $3, $4, $5)"
	GetHistory      = "SELECT id, client_id, action, details, actor, created_at FROM client_history WHERE client_id = $1 ORDER BY created_at, id"

	DatabaseOperationTimeout = time.Second * 5
)
