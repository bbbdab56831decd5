package database

// Migration bookkeeping
const (
	createMigrationsTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	selectAppliedMigrationsSQL = `SELECT version FROM schema_migrations`

	insertMigrationSQL = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (number, status, total_amount, payable_amount, version, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	UpdateOrderSQL = `
		UPDATE orders
		SET status = $2, total_amount = $3, payable_amount = $4, version = $5, doc = $6, updated_at = $7
		WHERE number = $1 AND version = $8`

	GetOrderByNumberSQL = `
		SELECT version, doc FROM orders WHERE number = $1`

	OrderVersionSQL = `
		SELECT version FROM orders WHERE number = $1`
)

// Kitchen ticket queries
const (
	InsertTicketSQL = `
		INSERT INTO kitchen_tickets (number, order_number, status, version, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	UpdateTicketSQL = `
		UPDATE kitchen_tickets
		SET status = $2, version = $3, doc = $4, updated_at = $5
		WHERE number = $1 AND version = $6`

	GetTicketByNumberSQL = `
		SELECT version, doc FROM kitchen_tickets WHERE number = $1`

	GetTicketByOrderSQL = `
		SELECT version, doc FROM kitchen_tickets WHERE order_number = $1`

	ListActiveTicketsSQL = `
		SELECT version, doc FROM kitchen_tickets
		WHERE status NOT IN ('delivered', 'cancelled', 'paid')
		ORDER BY created_at ASC`

	TicketVersionSQL = `
		SELECT version FROM kitchen_tickets WHERE number = $1`
)

// Split bill queries
const (
	InsertSplitBillSQL = `
		INSERT INTO split_bills (id, order_number, status, version, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	UpdateSplitBillSQL = `
		UPDATE split_bills
		SET status = $2, version = $3, doc = $4, updated_at = $5
		WHERE id = $1 AND version = $6`

	GetSplitBillByIDSQL = `
		SELECT version, doc FROM split_bills WHERE id = $1`

	GetSplitBillBySplitSQL = `
		SELECT version, doc FROM split_bills
		WHERE doc -> 'splits' @> jsonb_build_array(jsonb_build_object('id', $1::text))`

	GetActiveSplitBillSQL = `
		SELECT version, doc FROM split_bills
		WHERE order_number = $1 AND status = 'active'`

	SplitBillVersionSQL = `
		SELECT version FROM split_bills WHERE id = $1`
)

// Status history queries
const (
	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_number, status, changed_by, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5)`

	GetOrderStatusHistorySQL = `
		SELECT order_number, status, changed_by, COALESCE(notes, ''), changed_at
		FROM order_status_log
		WHERE order_number = $1
		ORDER BY changed_at ASC, id ASC`
)

// NextSequenceSQL bumps and returns the per-day counter used for order and ticket numbers
const NextSequenceSQL = `
	INSERT INTO number_sequences (kind, day, value)
	VALUES ($1, $2, 1)
	ON CONFLICT (kind, day) DO UPDATE SET value = number_sequences.value + 1
	RETURNING value`

// Collaborator read models
const (
	GetMenuItemSQL = `
		SELECT id, name, target_prep_seconds, kitchen_routed, variations, add_ons
		FROM menu_items
		WHERE id = $1 AND available`

	GetTableCapacitySQL = `
		SELECT id, capacity FROM restaurant_tables
		WHERE id = ANY($1) AND active`
)
