package testutil

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/trezcool/masomo-portal/core/school"
)

func (b *Backend) storeMessage(from, to *userRec, content string) *school.Message {
	msg := &school.Message{
		ID:         uuid.NewString(),
		FromUserID: from.ID,
		FromName:   from.DisplayName(),
		ToUserID:   to.ID,
		ToName:     to.DisplayName(),
		Content:    content,
		CreatedAt:  b.now(),
	}
	b.messages = append(b.messages, msg)
	b.notify(to.ID, school.NotificationMessage, "New message from "+from.DisplayName(), content, "/messages")
	return msg
}

func (b *Backend) sendMessage(ctx echo.Context) error {
	var nm school.NewMessage
	if err := ctx.Bind(&nm); err != nil {
		return errBadRequest("invalid request body")
	}
	if strings.TrimSpace(nm.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"content": "this field is required"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	to := b.userByID(nm.ToUserID)
	if to == nil {
		return errNotFound("recipient")
	}
	return ctx.JSON(http.StatusCreated, b.storeMessage(contextUser(ctx), to, nm.Content))
}

func (b *Backend) conversations(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	byUser := make(map[string]*school.Conversation)
	for _, m := range b.messages {
		var otherID string
		switch usr.ID {
		case m.FromUserID:
			otherID = m.ToUserID
		case m.ToUserID:
			otherID = m.FromUserID
		default:
			continue
		}
		conv, ok := byUser[otherID]
		if !ok {
			other := b.userByID(otherID)
			conv = &school.Conversation{UserID: otherID, UserName: other.Name, UserEmail: other.Email}
			byUser[otherID] = conv
		}
		conv.LastMessage = m.Content
		conv.LastTime = m.CreatedAt
		if m.ToUserID == usr.ID && !m.IsRead {
			conv.UnreadCount++
		}
	}
	convs := make([]school.Conversation, 0, len(byUser))
	for _, conv := range byUser {
		convs = append(convs, *conv)
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].LastTime.After(convs[j].LastTime) })
	return ctx.JSON(http.StatusOK, convs)
}

// thread marks incoming messages read, then returns the history.
func (b *Backend) thread(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	otherID := ctx.Param("userId")
	msgs := make([]school.Message, 0)
	for _, m := range b.messages {
		if m.FromUserID == otherID && m.ToUserID == usr.ID {
			m.IsRead = true
		}
		if (m.FromUserID == usr.ID && m.ToUserID == otherID) || (m.FromUserID == otherID && m.ToUserID == usr.ID) {
			msgs = append(msgs, *m)
		}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (b *Backend) unreadMessages(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	count := lo.CountBy(b.messages, func(m *school.Message) bool { return m.ToUserID == usr.ID && !m.IsRead })
	return ctx.JSON(http.StatusOK, school.Count{Count: count})
}

func (b *Backend) searchUsers(ctx echo.Context) error {
	q := strings.ToLower(strings.TrimSpace(ctx.QueryParam("q")))
	b.mu.Lock()
	defer b.mu.Unlock()
	users := make([]school.User, 0)
	if q == "" {
		return ctx.JSON(http.StatusOK, users)
	}
	for _, usr := range b.users {
		if strings.Contains(strings.ToLower(usr.Name), q) || strings.Contains(strings.ToLower(usr.Email), q) {
			users = append(users, usr.User)
		}
	}
	return ctx.JSON(http.StatusOK, users)
}

// Notifications

func (b *Backend) listNotifications(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	notifs := make([]school.Notification, 0)
	for i := len(b.notifications) - 1; i >= 0; i-- {
		if n := b.notifications[i]; n.userID == usr.ID {
			notifs = append(notifs, n.Notification)
		}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (b *Backend) unreadNotifications(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	count := lo.CountBy(b.notifications, func(n *notificationRec) bool { return n.userID == usr.ID && !n.IsRead })
	return ctx.JSON(http.StatusOK, school.Count{Count: count})
}

func (b *Backend) markRead(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	n, found := lo.Find(b.notifications, func(n *notificationRec) bool {
		return n.ID == ctx.Param("id") && n.userID == usr.ID
	})
	if !found {
		return errNotFound("notification")
	}
	n.IsRead = true
	return ctx.NoContent(http.StatusNoContent)
}

func (b *Backend) markAllRead(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	for _, n := range b.notifications {
		if n.userID == usr.ID {
			n.IsRead = true
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Announcements

func (b *Backend) listAnnouncements(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	anns := make([]school.Announcement, 0, len(b.announcements))
	for _, a := range b.announcements {
		anns = append(anns, *a)
	}
	return ctx.JSON(http.StatusOK, anns)
}

func (b *Backend) postAnnouncement(ctx echo.Context) error {
	var na school.NewAnnouncement
	if err := ctx.Bind(&na); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	ann := &school.Announcement{
		ID:         uuid.NewString(),
		CourseID:   na.CourseID,
		AuthorID:   usr.ID,
		AuthorName: usr.DisplayName(),
		Title:      na.Title,
		Content:    na.Content,
		IsPinned:   na.IsPinned,
		CreatedAt:  b.now(),
	}
	if na.CourseID != nil {
		if c := b.courseByID(*na.CourseID); c != nil {
			ann.CourseTitle = c.Title
		}
	}
	b.announcements = append(b.announcements, ann)
	return ctx.JSON(http.StatusCreated, ann)
}

func (b *Backend) deleteAnnouncement(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	_, idx, found := lo.FindIndexOf(b.announcements, func(a *school.Announcement) bool { return a.ID == ctx.Param("id") })
	if !found {
		return errNotFound("announcement")
	}
	if a := b.announcements[idx]; a.AuthorID != usr.ID && !usr.Role.IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, "permission denied")
	}
	b.announcements = append(b.announcements[:idx], b.announcements[idx+1:]...)
	return ctx.NoContent(http.StatusNoContent)
}
