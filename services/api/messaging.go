package apisvc

import (
	"context"
	"net/url"

	"github.com/trezcool/masomo-portal/core/school"
)

func (c *Client) Conversations(ctx context.Context) ([]school.Conversation, error) {
	var convs []school.Conversation
	err := c.Get(ctx, "/api/messages/conversations", nil, &convs)
	return convs, err
}

// Messages fetches the thread with userID; the backend marks it read.
func (c *Client) Messages(ctx context.Context, userID string) ([]school.Message, error) {
	var msgs []school.Message
	err := c.Get(ctx, pathf("/api/messages/%s", userID), nil, &msgs)
	return msgs, err
}

func (c *Client) SendMessage(ctx context.Context, nm school.NewMessage) (school.Message, error) {
	var msg school.Message
	err := c.Post(ctx, "/api/messages", nm, &msg)
	return msg, err
}

func (c *Client) UnreadMessages(ctx context.Context) (int, error) {
	var count school.Count
	err := c.Get(ctx, "/api/messages/unread-count", nil, &count)
	return count.Count, err
}

func (c *Client) SearchUsers(ctx context.Context, q string) ([]school.User, error) {
	var users []school.User
	err := c.Get(ctx, "/api/users/search", url.Values{"q": {q}}, &users)
	return users, err
}

// Notifications

func (c *Client) Notifications(ctx context.Context) ([]school.Notification, error) {
	var notifs []school.Notification
	err := c.Get(ctx, "/api/notifications", nil, &notifs)
	return notifs, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.Post(ctx, pathf("/api/notifications/%s/read", id), nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.Post(ctx, "/api/notifications/mark-all-read", nil, nil)
}

func (c *Client) UnreadNotifications(ctx context.Context) (int, error) {
	var count school.Count
	err := c.Get(ctx, "/api/notifications/unread-count", nil, &count)
	return count.Count, err
}

// Announcements

func (c *Client) Announcements(ctx context.Context) ([]school.Announcement, error) {
	var anns []school.Announcement
	err := c.Get(ctx, "/api/announcements", nil, &anns)
	return anns, err
}

func (c *Client) PostAnnouncement(ctx context.Context, na school.NewAnnouncement) (school.Announcement, error) {
	var ann school.Announcement
	err := c.Post(ctx, "/api/announcements", na, &ann)
	return ann, err
}

func (c *Client) DeleteAnnouncement(ctx context.Context, id string) error {
	return c.Delete(ctx, pathf("/api/announcements/%s", id), nil)
}
