// Package reports loads the dashboard figures.
package reports

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

type (
	Backend interface {
		DashboardStats(ctx context.Context) (school.DashboardStats, error)
		DashboardActivity(ctx context.Context) ([]school.Activity, error)
	}

	Dashboard struct {
		Stats    school.DashboardStats
		Activity []school.Activity
	}

	Service struct {
		backend Backend
		queries *query.Client
	}
)

func NewService(backend Backend, queries *query.Client) *Service {
	return &Service{backend: backend, queries: queries}
}

func (svc *Service) Stats(ctx context.Context) (school.DashboardStats, error) {
	return query.Fetch(ctx, svc.queries, query.DashboardStats, svc.backend.DashboardStats)
}

func (svc *Service) Activity(ctx context.Context) ([]school.Activity, error) {
	return query.Fetch(ctx, svc.queries, query.DashboardActivity, svc.backend.DashboardActivity)
}

// Dashboard fetches stats and activity concurrently.
func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Stats, err = svc.Stats(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Activity, err = svc.Activity(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
