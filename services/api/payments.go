package apisvc

import (
	"context"
	"net/url"

	"github.com/trezcool/masomo-portal/core/school"
)

func (c *Client) Payments(ctx context.Context, courseID string) ([]school.Payment, error) {
	var query url.Values
	if courseID != "" {
		query = url.Values{"course_id": {courseID}}
	}
	var payments []school.Payment
	err := c.Get(ctx, "/api/payments", query, &payments)
	return payments, err
}

func (c *Client) RecordPayment(ctx context.Context, np school.NewPayment) (school.Payment, error) {
	var payment school.Payment
	err := c.Post(ctx, "/api/payments", np, &payment)
	return payment, err
}

func (c *Client) MyPayments(ctx context.Context) ([]school.Payment, error) {
	var payments []school.Payment
	err := c.Get(ctx, "/api/my-payments", nil, &payments)
	return payments, err
}
