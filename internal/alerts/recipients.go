package alerts

import (
	"strings"

	"github.com/lox/siteweather/internal/settings"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleClient Role = "client"
	RoleWorker Role = "worker"
)

type Contact struct {
	Name  string
	Email string
}

// Contacts are the people attached to one jobsite.
type Contacts struct {
	Owner   Contact
	Client  Contact
	Workers []Contact
}

type Recipient struct {
	Role    Role   `json:"role"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Channel string `json:"channel"`
}

// Recipients picks who is told about triggers. Nobody is when nothing
// triggered or email is not among the configured channels (an empty channel
// list means email). Addresses are deduplicated case-insensitively in the
// order owner, client, workers, and contacts without an email are skipped.
func Recipients(triggers []Trigger, n settings.Notifications, c Contacts) []Recipient {
	if len(triggers) == 0 || !emailEnabled(n.Channels) {
		return nil
	}

	var out []Recipient
	seen := make(map[string]bool)
	add := func(role Role, ct Contact) {
		email := strings.TrimSpace(ct.Email)
		key := strings.ToLower(email)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Recipient{Role: role, Name: ct.Name, Email: email, Channel: settings.ChannelEmail})
	}

	if n.NotifyOwner {
		add(RoleOwner, c.Owner)
	}
	if n.NotifyClient {
		add(RoleClient, c.Client)
	}
	if n.NotifyWorkers {
		for _, w := range c.Workers {
			add(RoleWorker, w)
		}
	}
	return out
}

func emailEnabled(channels []string) bool {
	if len(channels) == 0 {
		return true
	}
	for _, ch := range channels {
		if strings.EqualFold(ch, settings.ChannelEmail) {
			return true
		}
	}
	return false
}
