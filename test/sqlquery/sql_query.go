package sqlquery

const (
	DeleteAll     = "DELETE FROM client_history; DELETE FROM clients; DELETE FROM plans"
	CreateNewPlan = "INSERT INTO plans (id, name, duration_months, price, is_active) VALUES ($1, $2, $3, $4, true)"
)
