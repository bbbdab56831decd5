// Package loyalty talks to the customer points service.
package loyalty

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/jsonclient"
	"restaurant-pos/internal/models"
)

// Balance is a customer's redeemable points. RedeemRate bounds the points
// usable per unit of order total; PointValue converts one point to currency.
type Balance struct {
	CustomerID string          `json:"customer_id"`
	Points     int64           `json:"points"`
	RedeemRate decimal.Decimal `json:"redeem_rate"`
	PointValue decimal.Decimal `json:"point_value"`
}

type Service interface {
	Balance(ctx context.Context, customerID string) (*Balance, error)
	Redeem(ctx context.Context, customerID string, points int64, orderNumber string) error
	// Reverse returns the points redeemed against orderNumber
	Reverse(ctx context.Context, customerID, orderNumber string) error
}

type Client struct {
	http *jsonclient.Client
}

func NewClient(c *jsonclient.Client) *Client {
	return &Client{http: c}
}

func (c *Client) Balance(ctx context.Context, customerID string) (*Balance, error) {
	if customerID == "" {
		return nil, models.NewValidationError("customer_id", "customer id is required")
	}
	var b Balance
	if err := c.http.Do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID)+"/balance", nil, &b); err != nil {
		return nil, err
	}
	b.CustomerID = customerID
	return &b, nil
}

type redeemRequest struct {
	Points      int64  `json:"points"`
	OrderNumber string `json:"order_number"`
}

func (c *Client) Redeem(ctx context.Context, customerID string, points int64, orderNumber string) error {
	return c.http.Do(ctx, http.MethodPost, "/customers/"+url.PathEscape(customerID)+"/redemptions",
		redeemRequest{Points: points, OrderNumber: orderNumber}, nil)
}

func (c *Client) Reverse(ctx context.Context, customerID, orderNumber string) error {
	return c.http.Do(ctx, http.MethodDelete,
		"/customers/"+url.PathEscape(customerID)+"/redemptions/"+url.PathEscape(orderNumber), nil, nil)
}
