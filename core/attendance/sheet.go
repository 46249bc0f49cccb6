// Package attendance holds the teacher's attendance sheet for one (course, date) and its batch save.
package attendance

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/school"
)

// DefaultStatus pre-fills students without a record.
const DefaultStatus = school.AttendancePresent

var (
	errNoSelection  = errors.New("select a course and a date first")
	errNotOnRoster  = errors.New("student is not on this course's roster")
	errEmptyRoster  = errors.New("no active students in this course")
	errStaleSheet   = errors.New("the selection changed, reload the sheet")
	errInvalidState = errors.New("invalid attendance status")
)

type (
	mark struct {
		status string
		note   string
	}

	// Row is one roster line as the sheet shows it.
	Row struct {
		school.RosterEntry
		Status   string
		Note     string
		Recorded bool // an existing record backs the row
		Unsaved  bool // a local mark overrides the row
	}

	// Sheet is the unsaved attendance state of a (course, date) selection.
	// Local marks are discarded whenever the selection changes.
	Sheet struct {
		mu       sync.Mutex
		courseID string
		date     string
		roster   []school.RosterEntry
		existing map[string]school.AttendanceRecord
		marks    map[string]mark
	}
)

func NewSheet() *Sheet {
	return &Sheet{
		existing: make(map[string]school.AttendanceRecord),
		marks:    make(map[string]mark),
	}
}

// Select changes the (course, date) and reports whether it changed; a change drops unsaved marks.
func (sh *Sheet) Select(courseID, date string) bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if courseID == sh.courseID && date == sh.date {
		return false
	}
	sh.courseID, sh.date = courseID, date
	sh.roster = nil
	sh.existing = make(map[string]school.AttendanceRecord)
	sh.marks = make(map[string]mark)
	return true
}

func (sh *Sheet) Selection() (courseID, date string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.courseID, sh.date
}

// fill loads the roster and the records of the selection; it is a no-op if the selection moved on.
func (sh *Sheet) fill(courseID, date string, roster []school.RosterEntry, records []school.AttendanceRecord) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if courseID != sh.courseID || date != sh.date {
		return errStaleSheet
	}
	sh.roster = roster
	sh.existing = make(map[string]school.AttendanceRecord, len(records))
	for _, rec := range records {
		sh.existing[rec.EnrollmentID] = rec
	}
	return nil
}

// Status is the local mark, else the existing record, else present.
func (sh *Sheet) Status(enrollmentID string) string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, _ := sh.statusLocked(enrollmentID)
	return st.status
}

func (sh *Sheet) statusLocked(enrollmentID string) (mark, bool) {
	if m, ok := sh.marks[enrollmentID]; ok {
		return m, true
	}
	if rec, ok := sh.existing[enrollmentID]; ok {
		return mark{status: rec.Status, note: rec.Note}, false
	}
	return mark{status: DefaultStatus}, false
}

// Mark sets a local, unsaved status for a roster entry.
func (sh *Sheet) Mark(enrollmentID, status, note string) error {
	status = core.CleanString(status, true)
	if !lo.Contains(school.AttendanceStatuses, status) {
		return core.NewValidationError(errInvalidState, core.FieldError{Field: "status", Error: errInvalidState.Error()})
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if !lo.ContainsBy(sh.roster, func(e school.RosterEntry) bool { return e.EnrollmentID == enrollmentID }) {
		return core.NewValidationError(errNotOnRoster)
	}
	sh.marks[enrollmentID] = mark{status: status, note: core.CleanString(note)}
	return nil
}

// Dirty reports unsaved marks.
func (sh *Sheet) Dirty() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return len(sh.marks) > 0
}

func (sh *Sheet) Rows() []Row {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rows := make([]Row, 0, len(sh.roster))
	for _, entry := range sh.roster {
		m, unsaved := sh.statusLocked(entry.EnrollmentID)
		_, recorded := sh.existing[entry.EnrollmentID]
		rows = append(rows, Row{RosterEntry: entry, Status: m.status, Note: m.note, Recorded: recorded, Unsaved: unsaved})
	}
	return rows
}

// Batch has exactly one record per roster entry.
func (sh *Sheet) Batch() (school.AttendanceBatch, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.courseID == "" || sh.date == "" {
		return school.AttendanceBatch{}, core.NewValidationError(errNoSelection)
	}
	if len(sh.roster) == 0 {
		return school.AttendanceBatch{}, core.NewValidationError(errEmptyRoster)
	}
	batch := school.AttendanceBatch{Date: sh.date, Records: make([]school.AttendanceRecord, 0, len(sh.roster))}
	for _, entry := range sh.roster {
		m, _ := sh.statusLocked(entry.EnrollmentID)
		batch.Records = append(batch.Records, school.AttendanceRecord{
			EnrollmentID:  entry.EnrollmentID,
			StudentUserID: entry.StudentUserID,
			Status:        m.status,
			Note:          m.note,
		})
	}
	return batch, nil
}

// commit records a saved batch as the existing records and drops the unsaved marks.
// It is a no-op once the selection has moved on.
func (sh *Sheet) commit(courseID string, batch school.AttendanceBatch) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if courseID != sh.courseID || batch.Date != sh.date {
		return
	}
	for _, rec := range batch.Records {
		prev := sh.existing[rec.EnrollmentID]
		prev.EnrollmentID = rec.EnrollmentID
		prev.StudentUserID = rec.StudentUserID
		prev.CourseID = courseID
		prev.Date = batch.Date
		prev.Status = rec.Status
		prev.Note = rec.Note
		sh.existing[rec.EnrollmentID] = prev
	}
	sh.marks = make(map[string]mark)
}

