package messaging

import (
	"strings"

	"github.com/trezcool/masomo-portal/core/school"
)

// Compose is the draft of a new conversation. The message input stays
// disabled until a recipient has been picked from the search results.
type Compose struct {
	Query     string
	Recipient *school.User
	Content   string
}

// SearchEnabled reports whether Query is long enough to search.
func (c Compose) SearchEnabled() bool {
	return len([]rune(strings.TrimSpace(c.Query))) >= MinSearchLen
}

// Pick resolves the recipient.
func (c *Compose) Pick(usr school.User) {
	c.Recipient = &usr
	c.Query = usr.DisplayName()
}

// CanSend needs a resolved recipient and non-blank content.
func (c Compose) CanSend() bool {
	return c.Recipient != nil && strings.TrimSpace(c.Content) != ""
}

func (c Compose) Message() school.NewMessage {
	var to string
	if c.Recipient != nil {
		to = c.Recipient.ID
	}
	return school.NewMessage{ToUserID: to, Content: strings.TrimSpace(c.Content)}
}
