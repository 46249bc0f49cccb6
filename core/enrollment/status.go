// Package enrollment implements the course access workflow: requests, invitations and their responses.
package enrollment

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/school"
)

var ErrInvalidTransition = errors.New("invalid enrollment transition")

// Status is the normalized lifecycle state of a (student, course) pair.
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusInvited  Status = "invited"
	StatusActive   Status = "active"
	StatusDeclined Status = "declined"
)

// ParseStatus normalizes the backend's wire values.
func ParseStatus(wire string) Status {
	switch strings.ToLower(strings.TrimSpace(wire)) {
	case "", "none":
		return StatusNone
	case "pending", "requested":
		return StatusPending
	case "invited":
		return StatusInvited
	case "active", "approved", "accepted":
		return StatusActive
	case "rejected", "declined":
		return StatusDeclined
	}
	return StatusNone
}

func (s Status) Terminal() bool {
	return s == StatusActive || s == StatusDeclined
}

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInvited:
		return "Invited"
	case StatusActive:
		return "Active"
	case StatusDeclined:
		return "Declined"
	}
	return "Not enrolled"
}

type Event string

const (
	EventRequest Event = "request"
	EventInvite  Event = "invite"
	EventAccept  Event = "accept"
	EventDecline Event = "decline"
	EventApprove Event = "approve" // server side only
	EventReject  Event = "reject"  // server side only
)

var transitions = map[Status]map[Event]Status{
	StatusNone: {
		EventRequest: StatusPending,
		EventInvite:  StatusInvited,
	},
	StatusInvited: {
		EventAccept:  StatusActive,
		EventDecline: StatusDeclined,
	},
	StatusPending: {
		EventApprove: StatusActive,
		EventReject:  StatusDeclined,
	},
}

// Transition returns the state reached from `from` on `ev`.
func Transition(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, errors.Wrapf(ErrInvalidTransition, "%s on %s", ev, from)
}

// Action is a control a student may use on a course card.
type Action string

const (
	ActionRequestAccess Action = "request-access"
	ActionAccept        Action = "accept"
	ActionDecline       Action = "decline"
)

func (a Action) Label() string {
	switch a {
	case ActionRequestAccess:
		return "Request Access"
	case ActionAccept:
		return "Accept"
	case ActionDecline:
		return "Decline"
	}
	return string(a)
}

// Actions is what a course card renders for a status.
type Actions struct {
	Allowed   []Action
	Indicator string // disabled badge shown instead of a control
}

func (a Actions) Can(action Action) bool {
	for _, allowed := range a.Allowed {
		if allowed == action {
			return true
		}
	}
	return false
}

// ActionsFor is a pure function of status.
func ActionsFor(s Status) Actions {
	switch s {
	case StatusNone:
		return Actions{Allowed: []Action{ActionRequestAccess}}
	case StatusPending:
		return Actions{Indicator: "Request Pending"}
	case StatusInvited:
		return Actions{Allowed: []Action{ActionAccept, ActionDecline}}
	}
	return Actions{}
}

var priority = map[Status]int{
	StatusActive:   4,
	StatusInvited:  3,
	StatusPending:  2,
	StatusDeclined: 1,
}

// BestMatch picks the enrollment that drives a course card: active, then invited,
// then pending, then declined; the newest record breaks ties.
func BestMatch(enrollments []school.Enrollment, courseID string) (school.Enrollment, Status) {
	var matches []school.Enrollment
	for _, enr := range enrollments {
		if enr.CourseID == courseID && priority[ParseStatus(enr.Status)] > 0 {
			matches = append(matches, enr)
		}
	}
	if len(matches) == 0 {
		return school.Enrollment{}, StatusNone
	}
	sort.SliceStable(matches, func(i, j int) bool {
		pi, pj := priority[ParseStatus(matches[i].Status)], priority[ParseStatus(matches[j].Status)]
		if pi != pj {
			return pi > pj
		}
		return matches[i].EnrolledAt.After(matches[j].EnrolledAt)
	})
	return matches[0], ParseStatus(matches[0].Status)
}
