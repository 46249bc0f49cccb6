package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/attendance"
	"github.com/trezcool/masomo-portal/core/school"
	apisvc "github.com/trezcool/masomo-portal/services/api"
)

func (cli *commandLine) login(ctx context.Context, email, pwd string) error {
	creds := school.Credentials{Email: core.CleanString(email, true), Password: pwd}
	if err := cli.validator.Check(creds); err != nil {
		return err
	}
	token, err := cli.api.Login(ctx, creds)
	if err != nil {
		return cli.printFormError(err)
	}
	usr, err := cli.api.ResolveUser(ctx, token)
	if err != nil {
		return err
	}
	if err = cli.newSession().Login(ctx, token, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "logged in as %s (%s)\n", usr.DisplayName(), usr.Role.Label())
	return nil
}

func (cli *commandLine) logout(_ context.Context) error {
	if err := cli.newSession().Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "logged out")
	return nil
}

func (cli *commandLine) whoami(_ context.Context, acc *account) error {
	fmt.Fprintf(cli.out, "%s <%s>\nrole: %s\nid:   %s\n",
		acc.user.DisplayName(), acc.user.Email, acc.user.Role.Label(), acc.user.ID)
	return nil
}

func (cli *commandLine) courses(ctx context.Context, acc *account) error {
	cards, err := acc.enrollment.CourseCards(ctx, acc.user)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		fmt.Fprintln(cli.out, "no courses")
		return nil
	}

	tw := cli.table()
	if acc.user.Role.IsStudent() {
		fmt.Fprintln(tw, "ID\tTITLE\tTEACHER\tSTATUS")
		for _, card := range cards {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				card.Course.ID, card.Course.Title, dash(card.Course.TeacherName), card.Status.Label())
		}
	} else {
		fmt.Fprintln(tw, "ID\tTITLE\tTEACHER\tPRICE")
		for _, card := range cards {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n",
				card.Course.ID, card.Course.Title, dash(card.Course.TeacherName), card.Course.Price)
		}
	}
	return tw.Flush()
}

func (cli *commandLine) invitations(ctx context.Context, acc *account) error {
	invs, err := acc.enrollment.PendingInvitations(ctx)
	if err != nil {
		return err
	}
	if len(invs) == 0 {
		fmt.Fprintln(cli.out, "no pending invitations")
		return nil
	}
	tw := cli.table()
	fmt.Fprintln(tw, "ENROLLMENT\tCOURSE\tTEACHER")
	for _, inv := range invs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", inv.Enrollment.ID, inv.Course.Title, dash(inv.Course.TeacherName))
	}
	return tw.Flush()
}

func (cli *commandLine) requestAccess(ctx context.Context, acc *account, courseID string) error {
	if err := acc.enrollment.RequestAccess(ctx, courseID); err != nil {
		return cli.printFormError(err)
	}
	fmt.Fprintln(cli.out, "access requested, waiting for approval")
	return nil
}

func (cli *commandLine) invite(ctx context.Context, acc *account, courseID, email string) error {
	if err := acc.enrollment.Invite(ctx, courseID, email); err != nil {
		return cli.printFormError(err)
	}
	fmt.Fprintf(cli.out, "invitation sent to %s\n", core.CleanString(email, true))
	return nil
}

func (cli *commandLine) respond(ctx context.Context, acc *account, enrollmentID string, accept bool) error {
	if err := acc.enrollment.Respond(ctx, enrollmentID, accept); err != nil {
		return cli.printFormError(err)
	}
	if accept {
		fmt.Fprintln(cli.out, "invitation accepted")
	} else {
		fmt.Fprintln(cli.out, "invitation declined")
	}
	return nil
}

func (cli *commandLine) myAttendance(ctx context.Context, acc *account) error {
	sums, err := acc.attendance.MySummary(ctx)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Fprintln(cli.out, "no attendance recorded")
		return nil
	}
	tw := cli.table()
	fmt.Fprintln(tw, "COURSE\tSESSIONS\tPRESENT\tLATE\tABSENT\tEXCUSED\tRATE")
	for _, sum := range sums {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.0f%%\n", sum.CourseTitle,
			sum.TotalSessions, sum.Present, sum.Late, sum.Absent, sum.Excused, sum.Percentage)
	}
	return tw.Flush()
}

// markAttendance loads the sheet, applies the marks and saves the whole batch.
// Without marks it only prints the sheet.
func (cli *commandLine) markAttendance(ctx context.Context, acc *account, courseID, date string, args []string) error {
	marks, err := parseMarks(args)
	if err != nil {
		return err
	}
	sheet := attendance.NewSheet()
	if err = acc.attendance.Load(ctx, sheet, courseID, date); err != nil {
		return cli.printFormError(err)
	}
	for id, m := range marks {
		if err = sheet.Mark(id, m[0], m[1]); err != nil {
			return cli.printFormError(err)
		}
	}
	if len(marks) > 0 {
		if err = acc.attendance.Save(ctx, sheet); err != nil {
			return cli.printFormError(err)
		}
		fmt.Fprintf(cli.out, "attendance saved for %s\n", date)
	}

	tw := cli.table()
	fmt.Fprintln(tw, "ENROLLMENT\tSTUDENT\tSTATUS\tNOTE")
	for _, row := range sheet.Rows() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.EnrollmentID, row.StudentName, row.Status, row.Note)
	}
	return tw.Flush()
}

func (cli *commandLine) unread(ctx context.Context, acc *account, watch bool) error {
	if !watch {
		msgs, notifs, err := acc.messaging.Unread(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "messages: %d\nnotifications: %d\n", msgs, notifs)
		return nil
	}

	wctx, stop := watchContext()
	defer stop()
	errc := make(chan error, 1)
	var mu sync.Mutex
	onCount := func(label string) func(int, error) {
		return func(n int, err error) {
			if err != nil {
				report(errc, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(cli.out, "%s %s: %d\n", time.Now().Format(time.TimeOnly), label, n)
		}
	}
	msgPoller := acc.messaging.WatchUnreadMessages(wctx, onCount("messages"))
	notifPoller := acc.messaging.WatchUnreadNotifications(wctx, onCount("notifications"))
	defer notifPoller.Stop()
	defer msgPoller.Stop()
	return cli.waitWatch(wctx, errc)
}

// chat optionally sends a message, then prints the thread once or keeps polling it.
func (cli *commandLine) chat(ctx context.Context, acc *account, with, send string, watch bool) error {
	if strings.TrimSpace(send) != "" {
		if _, err := acc.messaging.Send(ctx, school.NewMessage{ToUserID: with, Content: send}); err != nil {
			return cli.printFormError(err)
		}
	}
	if !watch {
		msgs, err := acc.messaging.Thread(ctx, with)
		if err != nil {
			return err
		}
		cli.printThread(acc, msgs, 0)
		return nil
	}

	wctx, stop := watchContext()
	defer stop()
	errc := make(chan error, 1)
	var shown int
	poller := acc.messaging.WatchThread(wctx, with, func(msgs []school.Message, err error) {
		if err != nil {
			report(errc, err)
			return
		}
		shown = cli.printThread(acc, msgs, shown)
	})
	defer poller.Stop()
	return cli.waitWatch(wctx, errc)
}

// printThread prints messages from index from on and returns the new count.
func (cli *commandLine) printThread(acc *account, msgs []school.Message, from int) int {
	if from == 0 && len(msgs) == 0 {
		fmt.Fprintln(cli.out, "no messages yet")
	}
	for _, m := range msgs[min(from, len(msgs)):] {
		who := m.FromName
		if m.FromUserID == acc.user.ID {
			who = "me"
		}
		fmt.Fprintf(cli.out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), who, m.Content)
	}
	return len(msgs)
}

func report(errc chan<- error, err error) {
	select {
	case errc <- err:
	default:
	}
}

// waitWatch returns on interrupt or once a poll is rejected as unauthorized.
// Other poll failures are logged and the next tick retries.
func (cli *commandLine) waitWatch(ctx context.Context, errc <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if apisvc.IsUnauthorized(err) {
				return errors.Wrap(err, "polling")
			}
			cli.logger.Warn("poll failed", err)
		}
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
