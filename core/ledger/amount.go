package ledger

import (
	"fmt"
	"math"

	"github.com/trezcool/masomo-portal/core/school"
)

// Amount is a money value in integer cents.
type Amount int64

// FromFloat rounds a wire amount to the nearest cent.
func FromFloat(f float64) Amount {
	return Amount(math.Round(f * 100))
}

func (a Amount) Float() float64 { return float64(a) / 100 }

func (a Amount) String() string {
	sign := ""
	if a < 0 {
		sign, a = "-", -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, a/100, a%100)
}

// Total sums payments cent by cent, so float drift never accumulates.
func Total(payments []school.Payment) Amount {
	var sum Amount
	for _, p := range payments {
		sum += FromFloat(p.Amount)
	}
	return sum
}

type CourseTotal struct {
	CourseID    string
	CourseTitle string
	Payments    int
	Total       Amount
}

// ByCourse groups payments per course, in order of first appearance.
func ByCourse(payments []school.Payment) []CourseTotal {
	idx := make(map[string]int)
	var out []CourseTotal
	for _, p := range payments {
		i, ok := idx[p.CourseID]
		if !ok {
			i = len(out)
			idx[p.CourseID] = i
			out = append(out, CourseTotal{CourseID: p.CourseID, CourseTitle: p.CourseTitle})
		}
		out[i].Payments++
		out[i].Total += FromFloat(p.Amount)
	}
	return out
}
