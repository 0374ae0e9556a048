package alerts

import (
	"testing"

	"github.com/lox/siteweather/internal/settings"
)

func TestRecipients(t *testing.T) {
	triggered := []Trigger{{Hazard: HazardRain}}
	contacts := Contacts{
		Owner:  Contact{Name: "Dana", Email: "dana@builder.example"},
		Client: Contact{Name: "Acme Homes", Email: "pm@acme.example"},
		Workers: []Contact{
			{Name: "Luis", Email: "luis@builder.example"},
			{Name: "No Email"},
			{Name: "Dana again", Email: "DANA@builder.example"},
		},
	}

	tests := []struct {
		name     string
		triggers []Trigger
		n        settings.Notifications
		want     []string
	}{
		{"nothing triggered", nil, settings.Notifications{NotifyOwner: true}, nil},
		{"owner only", triggered, settings.Notifications{NotifyOwner: true}, []string{"dana@builder.example"}},
		{"everyone deduplicated", triggered, settings.Notifications{NotifyOwner: true, NotifyClient: true, NotifyWorkers: true},
			[]string{"dana@builder.example", "pm@acme.example", "luis@builder.example"}},
		{"workers without owner keep duplicate address once", triggered, settings.Notifications{NotifyWorkers: true},
			[]string{"luis@builder.example", "DANA@builder.example"}},
		{"sms only channel", triggered, settings.Notifications{NotifyOwner: true, Channels: []string{"sms"}}, nil},
		{"explicit email channel", triggered, settings.Notifications{NotifyClient: true, Channels: []string{"email"}}, []string{"pm@acme.example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recipients(tt.triggers, tt.n, contacts)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d recipients (%+v), want %d", len(got), got, len(tt.want))
			}
			for i, r := range got {
				if r.Email != tt.want[i] {
					t.Errorf("recipient[%d] = %q, want %q", i, r.Email, tt.want[i])
				}
				if r.Channel != settings.ChannelEmail {
					t.Errorf("recipient[%d] channel = %q", i, r.Channel)
				}
			}
		})
	}
}
