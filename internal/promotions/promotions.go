// Package promotions talks to the coupon service.
package promotions

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/jsonclient"
	"restaurant-pos/internal/models"
)

// Coupon is a validated coupon. Exactly one of Percent and Amount is set.
type Coupon struct {
	Code    string          `json:"code"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// Discount converts the coupon into an order discount
func (c *Coupon) Discount() *models.Discount {
	return &models.Discount{
		Kind:        models.DiscountCoupon,
		Code:        c.Code,
		Percent:     c.Percent,
		FixedAmount: c.Amount,
	}
}

type Service interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, error)
	Release(ctx context.Context, code, orderNumber string) error
}

// Client is the HTTP implementation of Service
type Client struct {
	http *jsonclient.Client
}

func NewClient(c *jsonclient.Client) *Client {
	return &Client{http: c}
}

type validateRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type validateResponse struct {
	Valid   bool            `json:"valid"`
	Reason  string          `json:"reason"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

func (c *Client) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.NewValidationError("code", "coupon code is required")
	}

	var resp validateResponse
	if err := c.http.Do(ctx, http.MethodPost, "/coupons/validate", validateRequest{Code: code, Subtotal: subtotal}, &resp); err != nil {
		return nil, err
	}
	if !resp.Valid {
		reason := resp.Reason
		if reason == "" {
			reason = "coupon is not valid for this order"
		}
		return nil, models.NewValidationError("code", "%s", reason)
	}
	if resp.Percent.IsNegative() || resp.Amount.IsNegative() || resp.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, models.NewValidationError("code", "coupon %s has an invalid value", code)
	}
	return &Coupon{Code: code, Percent: resp.Percent, Amount: resp.Amount}, nil
}

type releaseRequest struct {
	Code        string `json:"code"`
	OrderNumber string `json:"order_number"`
}

func (c *Client) Release(ctx context.Context, code, orderNumber string) error {
	return c.http.Do(ctx, http.MethodPost, "/coupons/release", releaseRequest{Code: code, OrderNumber: orderNumber}, nil)
}
