// Package messaging covers direct messages, notifications and announcements, plus their unread counters.
package messaging

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

// MinSearchLen is the shortest trimmed query that triggers a recipient search.
const MinSearchLen = 2

type (
	Backend interface {
		Conversations(ctx context.Context) ([]school.Conversation, error)
		Messages(ctx context.Context, userID string) ([]school.Message, error)
		SendMessage(ctx context.Context, nm school.NewMessage) (school.Message, error)
		UnreadMessages(ctx context.Context) (int, error)
		SearchUsers(ctx context.Context, q string) ([]school.User, error)

		Notifications(ctx context.Context) ([]school.Notification, error)
		UnreadNotifications(ctx context.Context) (int, error)
		MarkNotificationRead(ctx context.Context, id string) error
		MarkAllNotificationsRead(ctx context.Context) error

		Announcements(ctx context.Context) ([]school.Announcement, error)
		PostAnnouncement(ctx context.Context, na school.NewAnnouncement) (school.Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string) error
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

// Messages

func (svc *Service) Conversations(ctx context.Context) ([]school.Conversation, error) {
	return query.Fetch(ctx, svc.queries, query.Conversations, svc.backend.Conversations)
}

func (svc *Service) fetchThread(userID string) func(context.Context) ([]school.Message, error) {
	return func(ctx context.Context) ([]school.Message, error) {
		msgs, err := svc.backend.Messages(ctx, userID)
		if err != nil {
			return nil, err
		}
		// the backend marked the incoming messages read
		svc.queries.Invalidate(query.Conversations, query.MessageCount)
		return msgs, nil
	}
}

// Thread opens the conversation with userID, which is what marks it read.
func (svc *Service) Thread(ctx context.Context, userID string) ([]school.Message, error) {
	return query.Fetch(ctx, svc.queries, query.Messages(userID), svc.fetchThread(userID),
		query.Enabled(userID != ""), query.Refetch())
}

// WatchThread polls an open conversation until ctx ends or the poller is stopped.
func (svc *Service) WatchThread(ctx context.Context, userID string, onData func([]school.Message, error)) *query.Poller {
	return query.Poll(ctx, svc.queries, query.Messages(userID), query.ChatInterval, svc.fetchThread(userID), onData)
}

func (svc *Service) Send(ctx context.Context, nm school.NewMessage) (school.Message, error) {
	nm.Content = core.CleanString(nm.Content)
	if err := svc.validator.Check(nm); err != nil {
		return school.Message{}, err
	}
	msg, err := svc.backend.SendMessage(ctx, nm)
	if err != nil {
		return school.Message{}, err
	}
	svc.queries.Invalidate(query.Messages(nm.ToUserID), query.Conversations)
	return msg, nil
}

// SearchRecipients runs only for queries of MinSearchLen or more; selfID is filtered out.
func (svc *Service) SearchRecipients(ctx context.Context, selfID, q string) ([]school.User, error) {
	q = core.CleanString(q)
	users, err := query.Fetch(ctx, svc.queries, query.UserSearch(strings.ToLower(q)),
		func(ctx context.Context) ([]school.User, error) {
			return svc.backend.SearchUsers(ctx, q)
		},
		query.Enabled(len([]rune(q)) >= MinSearchLen),
	)
	if errors.Is(err, query.ErrDisabled) {
		return []school.User{}, nil
	}
	if err != nil {
		return nil, err
	}
	return lo.Filter(users, func(u school.User, _ int) bool { return u.ID != selfID }), nil
}

func (svc *Service) UnreadMessages(ctx context.Context) (int, error) {
	return query.Fetch(ctx, svc.queries, query.MessageCount, svc.backend.UnreadMessages)
}

func (svc *Service) WatchUnreadMessages(ctx context.Context, onData func(int, error)) *query.Poller {
	return query.Poll(ctx, svc.queries, query.MessageCount, query.UnreadMessagesInterval, svc.backend.UnreadMessages, onData)
}

// Notifications

func (svc *Service) Notifications(ctx context.Context) ([]school.Notification, error) {
	return query.Fetch(ctx, svc.queries, query.Notifications, svc.backend.Notifications)
}

func (svc *Service) UnreadNotifications(ctx context.Context) (int, error) {
	return query.Fetch(ctx, svc.queries, query.NotificationCount, svc.backend.UnreadNotifications)
}

func (svc *Service) WatchUnreadNotifications(ctx context.Context, onData func(int, error)) *query.Poller {
	return query.Poll(ctx, svc.queries, query.NotificationCount, query.UnreadNotificationsInterval,
		svc.backend.UnreadNotifications, onData)
}

func (svc *Service) MarkRead(ctx context.Context, id string) error {
	if err := svc.backend.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	svc.queries.Invalidate(query.Notifications, query.NotificationCount)
	return nil
}

func (svc *Service) MarkAllRead(ctx context.Context) error {
	if err := svc.backend.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	svc.queries.Invalidate(query.Notifications, query.NotificationCount)
	return nil
}

// Unread fetches both badge counters concurrently.
func (svc *Service) Unread(ctx context.Context) (messages, notifications int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		messages, err = svc.UnreadMessages(gctx)
		return err
	})
	g.Go(func() (err error) {
		notifications, err = svc.UnreadNotifications(gctx)
		return err
	})
	if err = g.Wait(); err != nil {
		return 0, 0, err
	}
	return messages, notifications, nil
}

// Announcements

// Announcements are sorted pinned first, then newest first.
func (svc *Service) Announcements(ctx context.Context) ([]school.Announcement, error) {
	anns, err := query.Fetch(ctx, svc.queries, query.Announcements, svc.backend.Announcements)
	if err != nil {
		return nil, err
	}
	sorted := append([]school.Announcement(nil), anns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsPinned != sorted[j].IsPinned {
			return sorted[i].IsPinned
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted, nil
}

func (svc *Service) PostAnnouncement(ctx context.Context, na school.NewAnnouncement) (school.Announcement, error) {
	if na.CourseID != nil && *na.CourseID == "" {
		na.CourseID = nil
	}
	if err := svc.validator.Check(na); err != nil {
		return school.Announcement{}, err
	}
	ann, err := svc.backend.PostAnnouncement(ctx, na)
	if err != nil {
		return school.Announcement{}, err
	}
	svc.queries.Invalidate(query.Announcements)
	return ann, nil
}

func (svc *Service) DeleteAnnouncement(ctx context.Context, id string) error {
	if err := svc.backend.DeleteAnnouncement(ctx, id); err != nil {
		return err
	}
	svc.queries.Invalidate(query.Announcements)
	return nil
}
