package attendance

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

const dateTag = "required,datetime=2006-01-02"

type (
	Backend interface {
		Roster(ctx context.Context, courseID string) ([]school.RosterEntry, error)
		Attendance(ctx context.Context, courseID, date string) ([]school.AttendanceRecord, error)
		SaveAttendance(ctx context.Context, courseID string, batch school.AttendanceBatch) error
		MyAttendance(ctx context.Context) ([]school.AttendanceRecord, error)
		MyAttendanceSummary(ctx context.Context) ([]school.AttendanceSummary, error)
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

// Load selects (courseID, date) on the sheet and fetches its roster and existing records.
func (svc *Service) Load(ctx context.Context, sheet *Sheet, courseID, date string) error {
	if err := svc.validator.Var("date", date, dateTag); err != nil {
		return err
	}
	sheet.Select(courseID, date)

	var (
		roster  []school.RosterEntry
		records []school.AttendanceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		roster, err = query.Fetch(gctx, svc.queries, query.Roster(courseID),
			func(ctx context.Context) ([]school.RosterEntry, error) {
				return svc.backend.Roster(ctx, courseID)
			},
			query.Enabled(courseID != ""),
		)
		return err
	})
	g.Go(func() (err error) {
		records, err = query.Fetch(gctx, svc.queries, query.Attendance(courseID, date),
			func(ctx context.Context) ([]school.AttendanceRecord, error) {
				return svc.backend.Attendance(ctx, courseID, date)
			},
			query.Enabled(courseID != ""),
		)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return sheet.fill(courseID, date, roster, records)
}

// Save posts the whole sheet as one batch. On success the saved marks become the sheet's records.
func (svc *Service) Save(ctx context.Context, sheet *Sheet) error {
	courseID, date := sheet.Selection()
	batch, err := sheet.Batch()
	if err != nil {
		return err
	}
	if err = svc.backend.SaveAttendance(ctx, courseID, batch); err != nil {
		return err
	}
	svc.queries.Invalidate(query.Attendance(courseID, date), query.MyAttendance, query.MyAttendanceSummary)
	sheet.commit(courseID, batch)
	return nil
}

func (svc *Service) MyAttendance(ctx context.Context) ([]school.AttendanceRecord, error) {
	return query.Fetch(ctx, svc.queries, query.MyAttendance, svc.backend.MyAttendance)
}

func (svc *Service) MySummary(ctx context.Context) ([]school.AttendanceSummary, error) {
	return query.Fetch(ctx, svc.queries, query.MyAttendanceSummary, svc.backend.MyAttendanceSummary)
}
