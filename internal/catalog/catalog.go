// Package catalog resolves menu item ids into prices, add-ons and preparation
// targets. Menu authoring lives elsewhere; this package only reads.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"restaurant-pos/internal/cache"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

const defaultPrepTime = 10 * time.Minute

// MenuItem is the catalog's current view of one menu entry
type MenuItem struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	TargetPrepTime time.Duration      `json:"target_prep_time"`
	KitchenRouted  bool               `json:"kitchen_routed"`
	Variations     []models.Variation `json:"variations"`
	AddOns         []models.AddOn     `json:"add_ons"`
}

// Catalog looks menu items up by id
type Catalog interface {
	Lookup(ctx context.Context, menuItemID string) (*MenuItem, error)
}

// Variation picks a variation by name; an empty name selects the first one.
func (m *MenuItem) Variation(name string) (models.Variation, error) {
	if len(m.Variations) == 0 {
		return models.Variation{}, models.NewValidationError("variation", "menu item %s has no variations", m.ID)
	}
	if name == "" {
		return m.Variations[0], nil
	}
	for _, v := range m.Variations {
		if v.Name == name {
			return v, nil
		}
	}
	return models.Variation{}, models.NewValidationError("variation", "menu item %s has no variation %q", m.ID, name)
}

// SelectAddOns resolves add-on names against the item's offered add-ons
func (m *MenuItem) SelectAddOns(names []string) ([]models.AddOn, error) {
	if len(names) == 0 {
		return nil, nil
	}
	offered := make(map[string]models.AddOn, len(m.AddOns))
	for _, a := range m.AddOns {
		offered[a.Name] = a
	}
	selected := make([]models.AddOn, 0, len(names))
	for _, n := range names {
		a, ok := offered[n]
		if !ok {
			return nil, models.NewValidationError("add_ons", "menu item %s has no add-on %q", m.ID, n)
		}
		selected = append(selected, a)
	}
	return selected, nil
}

// Postgres reads the menu_items table
type Postgres struct {
	db *database.DB
}

func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Lookup(ctx context.Context, menuItemID string) (*MenuItem, error) {
	var (
		item        MenuItem
		prepSeconds int
		variations  []byte
		addOns      []byte
	)
	err := p.db.QueryRow(ctx, database.GetMenuItemSQL, menuItemID).
		Scan(&item.ID, &item.Name, &prepSeconds, &item.KitchenRouted, &variations, &addOns)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("menu item %s: %w", menuItemID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("menu item %s: %v: %w", menuItemID, err, models.ErrExternalService)
	}

	if err := json.Unmarshal(variations, &item.Variations); err != nil {
		return nil, fmt.Errorf("failed to decode variations of %s: %w", menuItemID, err)
	}
	if err := json.Unmarshal(addOns, &item.AddOns); err != nil {
		return nil, fmt.Errorf("failed to decode add-ons of %s: %w", menuItemID, err)
	}
	item.TargetPrepTime = time.Duration(prepSeconds) * time.Second
	if item.TargetPrepTime <= 0 {
		item.TargetPrepTime = defaultPrepTime
	}
	return &item, nil
}

// Cached serves lookups from Redis and falls through to the wrapped catalog.
// Cache errors only cost a round trip to the source.
type Cached struct {
	next   Catalog
	cache  *cache.Redis
	ttl    time.Duration
	logger *logger.Logger
}

func NewCached(next Catalog, c *cache.Redis, ttl time.Duration, log *logger.Logger) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl, logger: log}
}

func cacheKey(id string) string {
	return "menu_item:" + id
}

func (c *Cached) Lookup(ctx context.Context, menuItemID string) (*MenuItem, error) {
	var item MenuItem
	err := c.cache.GetJSON(ctx, cacheKey(menuItemID), &item)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("catalog_cache_read_failed", "Menu cache unavailable, reading source", "", map[string]interface{}{
			"menu_item_id": menuItemID,
			"error":        err.Error(),
		})
	}

	found, err := c.next.Lookup(ctx, menuItemID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetJSON(ctx, cacheKey(menuItemID), found, c.ttl); err != nil {
		c.logger.Warn("catalog_cache_write_failed", "Failed to cache menu item", "", map[string]interface{}{
			"menu_item_id": menuItemID,
			"error":        err.Error(),
		})
	}
	return found, nil
}

// Static is an in-memory catalog
type Static map[string]*MenuItem

func (s Static) Lookup(_ context.Context, menuItemID string) (*MenuItem, error) {
	item, ok := s[menuItemID]
	if !ok {
		return nil, fmt.Errorf("menu item %s: %w", menuItemID, models.ErrNotFound)
	}
	cp := *item
	return &cp, nil
}
