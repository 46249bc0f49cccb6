// Package ledger records course payments and totals them.
package ledger

import (
	"context"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

type (
	Backend interface {
		Payments(ctx context.Context, courseID string) ([]school.Payment, error)
		RecordPayment(ctx context.Context, np school.NewPayment) (school.Payment, error)
		MyPayments(ctx context.Context) ([]school.Payment, error)
	}

	Service struct {
		backend   Backend
		queries   *query.Client
		validator *core.Validator
	}
)

func NewService(backend Backend, queries *query.Client, validator *core.Validator) *Service {
	return &Service{backend: backend, queries: queries, validator: validator}
}

// Payments lists the payments of the courses the viewer manages, optionally for one course.
func (svc *Service) Payments(ctx context.Context, courseID string) ([]school.Payment, error) {
	key := query.Payments
	if courseID != "" {
		key = query.CoursePayments(courseID)
	}
	return query.Fetch(ctx, svc.queries, key, func(ctx context.Context) ([]school.Payment, error) {
		return svc.backend.Payments(ctx, courseID)
	})
}

func (svc *Service) MyPayments(ctx context.Context) ([]school.Payment, error) {
	return query.Fetch(ctx, svc.queries, query.MyPayments, svc.backend.MyPayments)
}

func (svc *Service) Record(ctx context.Context, np school.NewPayment) (school.Payment, error) {
	np.Method = core.CleanString(np.Method, true)
	np.Note = core.CleanString(np.Note)
	np.PaidAt = core.CleanString(np.PaidAt)
	if err := svc.validator.Check(np); err != nil {
		return school.Payment{}, err
	}
	if np.PaidAt != "" {
		if err := svc.validator.Var("paid_at", np.PaidAt, "datetime=2006-01-02"); err != nil {
			return school.Payment{}, err
		}
	}
	p, err := svc.backend.RecordPayment(ctx, np)
	if err != nil {
		return school.Payment{}, err
	}
	svc.queries.Invalidate(query.Payments, query.MyPayments, query.DashboardStats)
	return p, nil
}
