package echoweb

import (
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/messaging"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

var errNoRecipient = core.NewValidationError(errors.New("pick a recipient and write a message"))

type messagesData struct {
	Conversations []school.Conversation
	With          string
	WithName      string
	Thread        []school.Message
	Compose       messaging.Compose
	Results       []school.User
	RefreshSecs   int
}

func (s *Server) messagesPage(ctx echo.Context) error {
	return s.renderMessages(ctx, ctx.QueryParam("with"), nil)
}

func (s *Server) renderMessages(ctx echo.Context, with string, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	data := messagesData{With: with, Compose: messaging.Compose{Query: ctx.QueryParam("q")}}

	var l loader
	if with != "" {
		// opening the thread is what marks it read, so it goes before the conversation list
		l.Go("thread", func() (err error) {
			data.Thread, err = v.messaging.Thread(reqCtx, with)
			return err
		})
		if _, err := l.Wait(); err != nil {
			return errors.Wrap(err, "loading thread")
		}
		data.RefreshSecs = int(query.ChatInterval.Seconds())
	}
	l.Go("conversations", func() (err error) {
		data.Conversations, err = v.messaging.Conversations(reqCtx)
		return err
	})
	if data.Compose.SearchEnabled() {
		l.Go("search", func() (err error) {
			data.Results, err = v.messaging.SearchRecipients(reqCtx, v.user.ID, data.Compose.Query)
			return err
		})
	}
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading messages")
	}

	if with != "" {
		if conv, ok := lo.Find(data.Conversations, func(c school.Conversation) bool { return c.UserID == with }); ok {
			data.WithName = conv.UserName
		} else {
			data.WithName = ctx.QueryParam("name")
		}
	}
	return s.render(ctx, v, "messages.html", "Messages", form, errs, data)
}

func (s *Server) sendMessage(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	to := ctx.FormValue("to")
	draft := messaging.Compose{Content: ctx.FormValue("content")}
	if to != "" {
		draft.Pick(school.User{ID: to, Name: ctx.FormValue("name")})
	}
	if !draft.CanSend() {
		return s.renderMessages(ctx, to, newFormState("message", ctx, errNoRecipient))
	}
	if _, err := v.messaging.Send(ctx.Request().Context(), draft.Message()); err != nil {
		if formFailure(err) {
			return s.renderMessages(ctx, to, newFormState("message", ctx, err))
		}
		return errors.Wrap(err, "sending message")
	}
	q := url.Values{"with": {to}, "name": {draft.Recipient.Name}}
	return s.redirectWith(ctx, "/messages?"+q.Encode(), "")
}

// Notifications

func (s *Server) notificationsPage(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	var notifs []school.Notification
	var l loader
	l.Go("notifications", func() (err error) {
		notifs, err = v.messaging.Notifications(ctx.Request().Context())
		return err
	})
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading notifications")
	}
	return s.render(ctx, v, "notifications.html", "Notifications", nil, errs, notifs)
}

func (s *Server) markRead(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := v.messaging.MarkRead(ctx.Request().Context(), ctx.Param("id")); err != nil && !apiGone(err) {
		return errors.Wrap(err, "marking notification read")
	}
	if link := ctx.FormValue("next"); isLocalPath(link) {
		return s.redirectWith(ctx, link, "")
	}
	return s.redirectWith(ctx, "/notifications", "")
}

func (s *Server) markAllRead(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := v.messaging.MarkAllRead(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return s.redirectWith(ctx, "/notifications", "all notifications marked as read")
}

// Announcements

type announcementsData struct {
	Announcements []school.Announcement
	Courses       []school.Course
	CanPost       bool
}

func (s *Server) announcementsPage(ctx echo.Context) error {
	return s.renderAnnouncements(ctx, nil)
}

func (s *Server) renderAnnouncements(ctx echo.Context, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	data := announcementsData{CanPost: v.user.Role.IsStaff()}
	var l loader
	l.Go("announcements", func() (err error) {
		data.Announcements, err = v.messaging.Announcements(reqCtx)
		return err
	})
	if data.CanPost {
		l.Go("courses", func() (err error) {
			data.Courses, err = v.catalog.Courses(reqCtx)
			return err
		})
	}
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading announcements")
	}
	return s.render(ctx, v, "announcements.html", "Announcements", form, errs, data)
}

func (s *Server) postAnnouncement(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	na := school.NewAnnouncement{
		Title:    ctx.FormValue("title"),
		Content:  ctx.FormValue("content"),
		IsPinned: cast.ToBool(ctx.FormValue("is_pinned")),
	}
	if courseID := ctx.FormValue("course"); courseID != "" {
		na.CourseID = &courseID
	}
	if _, err := v.messaging.PostAnnouncement(ctx.Request().Context(), na); err != nil {
		if formFailure(err) {
			return s.renderAnnouncements(ctx, newFormState("announcement", ctx, err))
		}
		return errors.Wrap(err, "posting announcement")
	}
	return s.redirectWith(ctx, "/announcements", "announcement posted")
}

func (s *Server) deleteAnnouncement(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := v.messaging.DeleteAnnouncement(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if formFailure(err) {
			return s.renderAnnouncements(ctx, newFormState("announcement-"+ctx.Param("id"), ctx, err))
		}
		return errors.Wrap(err, "deleting announcement")
	}
	return s.redirectWith(ctx, "/announcements", "announcement deleted")
}
