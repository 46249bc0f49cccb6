// Package timetable places scheduled courses on a weekly grid.
package timetable

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/trezcool/masomo-portal/core/school"
)

// The grid covers Mon-Sat, 07:00 to 19:00, in half-hour rows.
const (
	FirstHour = 7
	LastHour  = 19
	Rows      = (LastHour - FirstHour) * 2
	Colors    = 8
)

var Days = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type (
	Block struct {
		Course   school.Course
		StartRow int
		Span     int
		Color    int // palette index, stable per course
	}

	Grid struct {
		blocks map[string][]Block
		// Unplaced lists courses without a usable schedule.
		Unplaced []school.Course
	}
)

// Row maps "HH:MM" to its half-hour row: (h-7)*2 + (m>=30).
func Row(hhmm string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 2)
	if len(parts) != 2 {
		return 0, errors.Errorf("invalid time %q", hhmm)
	}
	h, err := atoi(parts[0])
	if err != nil || h > 23 {
		return 0, errors.Errorf("invalid hour in %q", hhmm)
	}
	m, err := atoi(parts[1])
	if err != nil || m > 59 {
		return 0, errors.Errorf("invalid minute in %q", hhmm)
	}
	row := (h - FirstHour) * 2
	if m >= 30 {
		row++
	}
	return row, nil
}

// atoi reads a zero padded clock field; cast alone would read "08" as octal.
func atoi(s string) (int, error) {
	s = strings.TrimLeft(strings.TrimSpace(s), "0")
	if s == "" {
		return 0, nil
	}
	n, err := cast.ToIntE(s)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid number %q", s)
	}
	return n, nil
}

// Span is the number of rows between start and end, at least one.
func Span(start, end string) (int, error) {
	s, err := Row(start)
	if err != nil {
		return 0, err
	}
	e, err := Row(end)
	if err != nil {
		return 0, err
	}
	if e-s < 1 {
		return 1, nil
	}
	return e - s, nil
}

// Build places every scheduled course on each of its days.
func Build(courses []school.Course) Grid {
	g := Grid{blocks: make(map[string][]Block, len(Days))}
	for i, c := range courses {
		sched := c.Schedule
		if sched == nil || len(sched.Days) == 0 || sched.StartTime == "" || sched.EndTime == "" {
			g.Unplaced = append(g.Unplaced, c)
			continue
		}
		start, err := Row(sched.StartTime)
		if err != nil {
			g.Unplaced = append(g.Unplaced, c)
			continue
		}
		span, err := Span(sched.StartTime, sched.EndTime)
		if err != nil {
			g.Unplaced = append(g.Unplaced, c)
			continue
		}
		for _, day := range sched.Days {
			d := normalizeDay(day)
			if d == "" {
				continue
			}
			g.blocks[d] = append(g.blocks[d], Block{Course: c, StartRow: start, Span: span, Color: i % Colors})
		}
	}
	return g
}

// normalizeDay keeps the first three letters, "monday" -> "Mon".
func normalizeDay(day string) string {
	day = strings.TrimSpace(day)
	if len(day) < 3 {
		return ""
	}
	d := strings.ToUpper(day[:1]) + strings.ToLower(day[1:3])
	for _, known := range Days {
		if d == known {
			return d
		}
	}
	return ""
}

// Day returns the blocks placed on day.
func (g Grid) Day(day string) []Block {
	return g.blocks[day]
}

// Starting returns the blocks of day that begin at row.
func (g Grid) Starting(day string, row int) []Block {
	var out []Block
	for _, b := range g.blocks[day] {
		if b.StartRow == row {
			out = append(out, b)
		}
	}
	return out
}

// Empty reports whether nothing was placed.
func (g Grid) Empty() bool {
	for _, blocks := range g.blocks {
		if len(blocks) > 0 {
			return false
		}
	}
	return true
}

// RowLabel is the "HH:MM" at the top of row.
func RowLabel(row int) string {
	return fmt.Sprintf("%02d:%02d", FirstHour+row/2, (row%2)*30)
}
