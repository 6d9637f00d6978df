package payments

import (
	"context"
	"errors"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/spf13/cast"

	"github.com/example/driver-hiring/internal/models"
)

// OrderCreator is the Orders resource of the Razorpay SDK.
type OrderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayClient creates orders through the Razorpay Orders API.
type RazorpayClient struct {
	orders OrderCreator
}

func NewRazorpayClient(keyID, keySecret string) *RazorpayClient {
	return NewRazorpayClientWith(razorpay.NewClient(keyID, keySecret).Order)
}

func NewRazorpayClientWith(orders OrderCreator) *RazorpayClient {
	return &RazorpayClient{orders: orders}
}

func (c *RazorpayClient) Provider() string { return "razorpay" }

func (c *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (models.Order, error) {
	order, err := c.createOrder(ctx, req)
	if err != nil {
		return models.Order{}, &Error{Provider: c.Provider(), Err: err}
	}
	return order, nil
}

// The SDK has no context support; a cancelled request is not sent.
func (c *RazorpayClient) createOrder(ctx context.Context, req OrderRequest) (models.Order, error) {
	if err := ctx.Err(); err != nil {
		return models.Order{}, err
	}
	out, err := c.orders.Create(map[string]interface{}{
		"amount":          MinorUnits(req.Amount),
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}, nil)
	if err != nil {
		return models.Order{}, err
	}
	id := cast.ToString(out["id"])
	if id == "" {
		return models.Order{}, errors.New("order response has no id")
	}
	return models.Order{
		ID:        id,
		Entity:    cast.ToString(out["entity"]),
		Amount:    cast.ToInt64(out["amount"]),
		Currency:  cast.ToString(out["currency"]),
		Receipt:   cast.ToString(out["receipt"]),
		Status:    cast.ToString(out["status"]),
		CreatedAt: cast.ToInt64(out["created_at"]),
		Provider:  c.Provider(),
	}, nil
}
