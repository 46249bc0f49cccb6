// Package navigation computes the role-gated menu of the portal.
package navigation

import (
	"strings"

	"github.com/trezcool/masomo-portal/core/school"
)

type (
	// Counters feed the unread badges.
	Counters struct {
		Messages      int
		Notifications int
	}

	Item struct {
		Label  string
		Path   string
		Badge  int
		Active bool
	}

	entry struct {
		label   string
		path    string
		visible func(school.Role) bool
		badge   func(Counters) int
	}
)

func all(school.Role) bool { return true }

func staff(r school.Role) bool { return r.IsStaff() }

func schoolAdmin(r school.Role) bool { return r.IsAdmin() }

var entries = []entry{
	{label: "Overview", path: "/", visible: all},
	{label: "Teachers", path: "/teachers", visible: schoolAdmin},
	{label: "Courses", path: "/courses", visible: all},
	{label: "Students", path: "/students", visible: staff},
	{label: "Attendance", path: "/attendance", visible: all},
	{label: "Payments", path: "/payments", visible: all},
	{label: "Grades", path: "/grades", visible: all},
	{label: "Homework", path: "/homework", visible: all},
	{label: "Timetable", path: "/timetable", visible: all},
	{label: "Messages", path: "/messages", visible: all, badge: func(c Counters) int { return c.Messages }},
	{label: "Notifications", path: "/notifications", visible: all, badge: func(c Counters) int { return c.Notifications }},
	{label: "Announcements", path: "/announcements", visible: all},
	{label: "Reports", path: "/reports", visible: staff},
	{label: "Settings", path: "/settings", visible: all},
	{label: "Profile", path: "/profile", visible: all},
}

// Menu returns the items visible to usr in a fixed order, with the current page marked active.
func Menu(usr *school.User, counters Counters, activePath string) []Item {
	if usr == nil {
		return nil
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if !e.visible(usr.Role) {
			continue
		}
		it := Item{Label: e.label, Path: e.path}
		if e.badge != nil {
			it.Badge = e.badge(counters)
		}
		items = append(items, it)
	}
	if i := Active(items, activePath); i >= 0 {
		items[i].Active = true
	}
	return items
}

// Active is the index of the item whose path is the longest prefix of path, or -1.
func Active(items []Item, path string) int {
	best, bestLen := -1, -1
	for i, it := range items {
		if !matches(it.Path, path) {
			continue
		}
		if len(it.Path) > bestLen {
			best, bestLen = i, len(it.Path)
		}
	}
	return best
}

// matches is a segment-wise prefix match; "/" only matches itself.
func matches(prefix, path string) bool {
	if prefix == "/" {
		return path == "/" || path == ""
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Allowed reports whether a role may open path; paths outside the menu are allowed.
func Allowed(role school.Role, path string) bool {
	for _, e := range entries {
		if e.path != "/" && matches(e.path, path) {
			return e.visible(role)
		}
	}
	return true
}
