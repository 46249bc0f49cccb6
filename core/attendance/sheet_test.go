package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/school"
)

func loadedSheet(t *testing.T, records ...school.AttendanceRecord) *Sheet {
	t.Helper()
	sh := NewSheet()
	require.True(t, sh.Select("c1", "2024-03-04"))
	roster := []school.RosterEntry{
		{EnrollmentID: "e1", StudentUserID: "s1", StudentName: "Amani"},
		{EnrollmentID: "e2", StudentUserID: "s2", StudentName: "Baraka"},
		{EnrollmentID: "e3", StudentUserID: "s3", StudentName: "Chausiku"},
	}
	require.NoError(t, sh.fill("c1", "2024-03-04", roster, records))
	return sh
}

func TestSheet_Status(t *testing.T) {
	sh := loadedSheet(t, school.AttendanceRecord{EnrollmentID: "e2", Status: "late", Note: "bus"})

	assert.Equal(t, "present", sh.Status("e1"), "default")
	assert.Equal(t, "late", sh.Status("e2"), "existing record")

	require.NoError(t, sh.Mark("e2", "Absent", ""))
	assert.Equal(t, "absent", sh.Status("e2"), "local mark wins")
	assert.True(t, sh.Dirty())

	rows := sh.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, Row{RosterEntry: rows[1].RosterEntry, Status: "absent", Recorded: true, Unsaved: true}, rows[1])
	assert.False(t, rows[0].Recorded)
}

func TestSheet_Mark(t *testing.T) {
	sh := loadedSheet(t)

	err := sh.Mark("e1", "sick", "")
	vErr, ok := core.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"status": "invalid attendance status"}, vErr.FieldMap())

	err = sh.Mark("e9", "absent", "")
	_, ok = core.AsValidationError(err)
	assert.True(t, ok, "not on roster")
	assert.False(t, sh.Dirty())
}

func TestSheet_Select(t *testing.T) {
	tests := []struct {
		name     string
		courseID string
		date     string
		changed  bool
	}{
		{name: "same selection", courseID: "c1", date: "2024-03-04"},
		{name: "other date", courseID: "c1", date: "2024-03-05", changed: true},
		{name: "other course", courseID: "c2", date: "2024-03-04", changed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := loadedSheet(t)
			require.NoError(t, sh.Mark("e1", "absent", ""))

			assert.Equal(t, tt.changed, sh.Select(tt.courseID, tt.date))
			assert.Equal(t, !tt.changed, sh.Dirty())
			if tt.changed {
				assert.Empty(t, sh.Rows(), "roster is reloaded for the new selection")
				assert.Equal(t, "present", sh.Status("e1"))
			} else {
				assert.Equal(t, "absent", sh.Status("e1"))
			}
		})
	}
}

func TestSheet_fillStale(t *testing.T) {
	sh := NewSheet()
	sh.Select("c1", "2024-03-04")
	sh.Select("c1", "2024-03-05")
	err := sh.fill("c1", "2024-03-04", []school.RosterEntry{{EnrollmentID: "e1"}}, nil)
	assert.Equal(t, errStaleSheet, err)
	assert.Empty(t, sh.Rows())
}

func TestSheet_Batch(t *testing.T) {
	sh := loadedSheet(t, school.AttendanceRecord{EnrollmentID: "e3", Status: "excused", Note: "doctor"})
	require.NoError(t, sh.Mark("e1", "late", " traffic "))

	batch, err := sh.Batch()
	require.NoError(t, err)
	assert.Equal(t, school.AttendanceBatch{
		Date: "2024-03-04",
		Records: []school.AttendanceRecord{
			{EnrollmentID: "e1", StudentUserID: "s1", Status: "late", Note: "traffic"},
			{EnrollmentID: "e2", StudentUserID: "s2", Status: "present"},
			{EnrollmentID: "e3", StudentUserID: "s3", Status: "excused", Note: "doctor"},
		},
	}, batch)

	_, err = NewSheet().Batch()
	_, ok := core.AsValidationError(err)
	assert.True(t, ok, "no selection")

	empty := NewSheet()
	empty.Select("c1", "2024-03-04")
	_, err = empty.Batch()
	_, ok = core.AsValidationError(err)
	assert.True(t, ok, "empty roster")
}

func TestSheet_commit(t *testing.T) {
	sh := loadedSheet(t)
	require.NoError(t, sh.Mark("e2", "late", "bus"))
	batch, err := sh.Batch()
	require.NoError(t, err)

	sh.commit("c1", batch)
	assert.False(t, sh.Dirty())
	rows := sh.Rows()
	assert.Equal(t, "late", rows[1].Status)
	assert.Equal(t, "bus", rows[1].Note)
	assert.True(t, rows[1].Recorded)
	assert.False(t, rows[1].Unsaved)

	// a batch for an old selection leaves the new one alone
	require.NoError(t, sh.Mark("e1", "absent", ""))
	require.True(t, sh.Select("c1", "2024-03-05"))
	sh.commit("c1", batch)
	assert.False(t, sh.Dirty())
	assert.Equal(t, "present", sh.Status("e2"))
}
