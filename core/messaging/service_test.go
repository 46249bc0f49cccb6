package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
	apisvc "github.com/trezcool/masomo-portal/services/api"
	"github.com/trezcool/masomo-portal/testutil"
)

func newService(t *testing.T, backend *testutil.Backend, usr school.User) *Service {
	t.Helper()
	cl := apisvc.NewClient(backend.URL(), apisvc.StaticToken(backend.Token(usr)))
	return NewService(cl, query.NewCache(time.Minute).Scope(usr.ID), school.NewValidator())
}

type fixture struct {
	backend *testutil.Backend
	teacher school.User
	jane    school.User
	joseph  school.User
}

func setup(t *testing.T) fixture {
	backend := testutil.NewBackend(t)
	return fixture{
		backend: backend,
		teacher: backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher),
		jane:    backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent),
		joseph:  backend.CreateUser(t, "Joseph", "joseph@x.com", "Passw0rd!", school.RoleStudent),
	}
}

func TestService_unreadMessages(t *testing.T) {
	f := setup(t)
	f.backend.SendMessage(f.teacher, f.jane, "homework is due friday")
	f.backend.SendMessage(f.teacher, f.jane, "and bring your book")
	f.backend.SendMessage(f.joseph, f.jane, "hi")

	ctx := context.Background()
	svc := newService(t, f.backend, f.jane)

	unread, err := svc.UnreadMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	// unrelated navigation does not decrease the counter
	convs, err := svc.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, f.joseph.ID, convs[0].UserID, "newest first")
	_, err = svc.Notifications(ctx)
	require.NoError(t, err)
	svc.queries.Invalidate(query.MessageCount)
	unread, err = svc.UnreadMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	// opening a thread is the read action
	msgs, err := svc.Thread(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	unread, err = svc.UnreadMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	convs, err = svc.Conversations(ctx)
	require.NoError(t, err)
	for _, c := range convs {
		if c.UserID == f.teacher.ID {
			assert.Zero(t, c.UnreadCount)
		} else {
			assert.Equal(t, 1, c.UnreadCount)
		}
	}

	msgCount, notifCount, err := svc.Unread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, msgCount)
	assert.Equal(t, 3, notifCount, "one notification per message")
}

func TestService_Send(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := newService(t, f.backend, f.jane)

	msgs, err := svc.Thread(ctx, f.teacher.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = svc.Send(ctx, school.NewMessage{ToUserID: f.teacher.ID, Content: "   "})
	vErr, ok := core.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, vErr.FieldMap(), "content")

	msg, err := svc.Send(ctx, school.NewMessage{ToUserID: f.teacher.ID, Content: " can I hand it in monday? "})
	require.NoError(t, err)
	assert.Equal(t, "can I hand it in monday?", msg.Content)

	cached, ok := query.Peek[[]school.Message](svc.queries, query.Messages(f.teacher.ID))
	require.True(t, ok)
	assert.Empty(t, cached, "stale copy stays until refetched")

	msgs, err = svc.Thread(ctx, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	convs, err := svc.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "can I hand it in monday?", convs[0].LastMessage)

	teacherSvc := newService(t, f.backend, f.teacher)
	unread, err := teacherSvc.UnreadMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestService_WatchThread(t *testing.T) {
	f := setup(t)
	f.backend.SendMessage(f.teacher, f.jane, "hello")
	svc := newService(t, f.backend, f.jane)

	got := make(chan []school.Message, 1)
	p := svc.WatchThread(context.Background(), f.teacher.ID, func(msgs []school.Message, err error) {
		if err == nil {
			select {
			case got <- msgs:
			default:
			}
		}
	})
	defer p.Stop()

	select {
	case msgs := <-got:
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello", msgs[0].Content)
	case <-time.After(5 * time.Second):
		t.Fatal("no poll result")
	}
	p.Stop()

	unread, err := svc.UnreadMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestService_SearchRecipients(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := newService(t, f.backend, f.jane)

	tests := []struct {
		name      string
		query     string
		wantNames []string
	}{
		{name: "too short", query: "j"},
		{name: "blank padded", query: " j  "},
		{name: "self filtered out", query: "jo", wantNames: []string{"Joseph"}},
		{name: "by email", query: "KABILA", wantNames: []string{"Mr Kabila"}},
		{name: "self only", query: "jane"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := svc.SearchRecipients(ctx, f.jane.ID, tt.query)
			require.NoError(t, err)
			var names []string
			for _, u := range users {
				names = append(names, u.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
	assert.Equal(t, 3, f.backend.Hits("GET /api/users/search"))
}

func TestCompose(t *testing.T) {
	var c Compose
	assert.False(t, c.SearchEnabled())
	assert.False(t, c.CanSend())

	c.Content = "hello"
	assert.False(t, c.CanSend(), "no recipient yet")

	c.Query = "jo"
	assert.True(t, c.SearchEnabled())
	c.Pick(school.User{ID: "u2", Name: "Joseph"})
	assert.Equal(t, "Joseph", c.Query)
	assert.True(t, c.CanSend())
	assert.Equal(t, school.NewMessage{ToUserID: "u2", Content: "hello"}, c.Message())

	c.Content = "  "
	assert.False(t, c.CanSend())
}

func TestService_notifications(t *testing.T) {
	f := setup(t)
	first := f.backend.Notify(f.jane, school.NotificationGrade, "New grade")
	f.backend.Notify(f.jane, school.NotificationSystem, "Welcome")
	f.backend.Notify(f.jane, school.NotificationAnnouncement, "School closed friday")
	f.backend.Notify(f.joseph, school.NotificationSystem, "Welcome")

	ctx := context.Background()
	svc := newService(t, f.backend, f.jane)

	notifs, err := svc.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, notifs, 3)
	assert.Equal(t, "School closed friday", notifs[0].Title)

	count, err := svc.UnreadNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, svc.MarkRead(ctx, first.ID))
	count, err = svc.UnreadNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.MarkAllRead(ctx))
	count, err = svc.UnreadNotifications(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	notifs, err = svc.Notifications(ctx)
	require.NoError(t, err)
	for _, n := range notifs {
		assert.True(t, n.IsRead)
	}

	joseph := newService(t, f.backend, f.joseph)
	count, err = joseph.UnreadNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "other users are untouched")

	err = svc.MarkRead(ctx, "nope")
	assert.True(t, apisvc.IsNotFound(err))
}

func TestService_announcements(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	staff := newService(t, f.backend, f.teacher)

	_, err := staff.PostAnnouncement(ctx, school.NewAnnouncement{Title: "", Content: "x"})
	_, ok := core.AsValidationError(err)
	require.True(t, ok)

	old, err := staff.PostAnnouncement(ctx, school.NewAnnouncement{Title: "Exams", Content: "Exams start monday", IsPinned: true})
	require.NoError(t, err)
	_, err = staff.PostAnnouncement(ctx, school.NewAnnouncement{Title: "Trip", Content: "Museum trip"})
	require.NoError(t, err)
	_, err = staff.PostAnnouncement(ctx, school.NewAnnouncement{Title: "Fees", Content: "Fees due", CourseID: new(string)})
	require.NoError(t, err)

	anns, err := newService(t, f.backend, f.jane).Announcements(ctx)
	require.NoError(t, err)
	var titles []string
	for _, a := range anns {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"Exams", "Fees", "Trip"}, titles)
	assert.Nil(t, anns[1].CourseID, "blank course means global")

	_, err = newService(t, f.backend, f.jane).PostAnnouncement(ctx, school.NewAnnouncement{Title: "Hi", Content: "x"})
	assert.True(t, apisvc.IsValidation(err), "students are refused")

	require.NoError(t, staff.DeleteAnnouncement(ctx, old.ID))
	anns, err = staff.Announcements(ctx)
	require.NoError(t, err)
	assert.Len(t, anns, 2)
}
