package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/models"
)

const (
	maxItemsPerRequest = 50
	maxQuantity        = 99
	maxTables          = 8
)

// ItemRequest selects one menu item
type ItemRequest struct {
	MenuItemID string   `json:"menu_item_id"`
	Variation  string   `json:"variation"`
	AddOns     []string `json:"add_ons"`
	Quantity   int      `json:"quantity"`
}

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	Customer        models.Customer  `json:"customer"`
	Tables          []string         `json:"tables"`
	Guests          int              `json:"guests"`
	Items           []ItemRequest    `json:"items"`
	CouponCode      string           `json:"coupon_code"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
}

// Validate checks the request shape before anything is looked up
func (r *CreateOrderRequest) Validate() error {
	if err := validateCustomer(r.Customer); err != nil {
		return err
	}
	if err := validateTables(r.Tables, r.Guests); err != nil {
		return err
	}
	if err := validateItems(r.Items); err != nil {
		return err
	}
	if r.CouponCode != "" && r.DiscountPercent != nil {
		return models.NewValidationError("discount_percent", "a coupon and a manual discount cannot be combined")
	}
	if r.DiscountPercent != nil {
		return validatePercent(*r.DiscountPercent)
	}
	return nil
}

func validateCustomer(c models.Customer) error {
	if len(c.Name) > 100 {
		return models.NewValidationError("customer.name", "customer name must be less than 100 characters")
	}
	phone := strings.TrimPrefix(c.Phone, "+")
	if phone == "" {
		return nil
	}
	if len(phone) < 7 || len(phone) > 15 {
		return models.NewValidationError("customer.phone", "phone number must have 7 to 15 digits")
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return models.NewValidationError("customer.phone", "phone number must contain digits only")
		}
	}
	return nil
}

func validateTables(tables []string, guests int) error {
	if len(tables) > maxTables {
		return models.NewValidationError("tables", "at most %d tables can be merged", maxTables)
	}
	for i, t := range tables {
		if strings.TrimSpace(t) == "" {
			return models.NewValidationError(fmt.Sprintf("tables[%d]", i), "table id is required")
		}
	}
	if guests < 0 {
		return models.NewValidationError("guests", "guests must not be negative")
	}
	return nil
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return models.NewValidationError("items", "items cannot be empty")
	}
	if len(items) > maxItemsPerRequest {
		return models.NewValidationError("items", "a maximum of %d items is allowed", maxItemsPerRequest)
	}
	for i, item := range items {
		if err := validateItem(item, i); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(item ItemRequest, index int) error {
	if strings.TrimSpace(item.MenuItemID) == "" {
		return models.NewValidationError(fmt.Sprintf("items[%d].menu_item_id", index), "menu item id is required")
	}
	if item.Quantity < 1 {
		return models.NewValidationError(fmt.Sprintf("items[%d].quantity", index), "item quantity must be at least 1")
	}
	if item.Quantity > maxQuantity {
		return models.NewValidationError(fmt.Sprintf("items[%d].quantity", index), "item quantity must be at most %d", maxQuantity)
	}
	return nil
}

func validatePercent(pct decimal.Decimal) error {
	if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return models.NewValidationError("percent", "discount percent must be greater than 0 and at most 100")
	}
	return nil
}
