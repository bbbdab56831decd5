// Package seating validates merged-table assignments against table capacity.
package seating

import (
	"context"
	"fmt"
	"sort"

	"restaurant-pos/internal/database"
	"restaurant-pos/internal/models"
)

type Service interface {
	// Capacity returns the combined seats of tableIDs. Unknown or inactive
	// tables are reported as ErrNotFound.
	Capacity(ctx context.Context, tableIDs []string) (int, error)
}

// Postgres reads restaurant_tables
type Postgres struct {
	db *database.DB
}

func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Capacity(ctx context.Context, tableIDs []string) (int, error) {
	rows, err := p.db.Query(ctx, database.GetTableCapacitySQL, tableIDs)
	if err != nil {
		return 0, fmt.Errorf("table capacity: %v: %w", err, models.ErrExternalService)
	}
	defer rows.Close()

	found := make(map[string]int, len(tableIDs))
	for rows.Next() {
		var (
			id       string
			capacity int
		)
		if err := rows.Scan(&id, &capacity); err != nil {
			return 0, fmt.Errorf("table capacity: %v: %w", err, models.ErrExternalService)
		}
		found[id] = capacity
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("table capacity: %v: %w", err, models.ErrExternalService)
	}
	return sum(found, tableIDs)
}

// Static is an in-memory seating plan keyed by table id
type Static map[string]int

func (s Static) Capacity(_ context.Context, tableIDs []string) (int, error) {
	return sum(s, tableIDs)
}

func sum(capacities map[string]int, tableIDs []string) (int, error) {
	var missing []string
	total := 0
	seen := make(map[string]bool, len(tableIDs))
	for _, id := range tableIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, ok := capacities[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		total += c
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return 0, fmt.Errorf("tables %v: %w", missing, models.ErrNotFound)
	}
	return total, nil
}
