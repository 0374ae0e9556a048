// Package notify turns triggered alerts into emails and delivers them.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/alerts"
	"github.com/lox/siteweather/internal/htmlutil"
)

// Alert is everything needed to notify about one jobsite check.
type Alert struct {
	UserID        string
	JobsiteID     string
	JobsiteName   string
	Address       string
	CompanyName   string
	Timezone      string
	WindowStart   time.Time
	WindowEnd     time.Time
	Reading       alerts.Reading
	Triggers      []alerts.Trigger
	Recipients    []alerts.Recipient
	CooldownHours int
}

// Message is a rendered email for one recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// BriefWriter produces a short crew-facing paragraph for an alert.
type BriefWriter interface {
	Brief(ctx context.Context, a Alert) (string, error)
}

type Composer struct {
	brief BriefWriter
}

// NewComposer returns a composer. brief may be nil.
func NewComposer(brief BriefWriter) *Composer {
	return &Composer{brief: brief}
}

var alertTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; color: #1f2933;">
<h2>Weather alert for {{.JobsiteName}}</h2>
{{if .Address}}<p>{{.Address}}</p>{{end}}
{{if .Brief}}<p><em>{{.Brief}}</em></p>{{end}}
<p>Forecast window: {{.Window}}</p>
<ul>
{{range .Triggers}}<li><strong>{{.Label}}</strong>: {{.Message}}</li>
{{end}}</ul>
<p>Plan crews and materials accordingly.</p>
<p style="font-size: 12px; color: #7b8794;">{{if .CompanyName}}Sent on behalf of {{.CompanyName}}. {{end}}You receive this because you are listed on this jobsite.</p>
</body>
</html>
`))

var testTemplate = template.Must(template.New("test").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif;">
<h2>SiteWeather test email</h2>
<p>Email delivery is working. Sent at {{.}}.</p>
</body>
</html>
`))

type triggerView struct {
	Label   string
	Message string
}

var hazardLabels = map[alerts.Hazard]string{
	alerts.HazardRain:          "Rain",
	alerts.HazardSnow:          "Snow",
	alerts.HazardSleet:         "Sleet",
	alerts.HazardHail:          "Hail",
	alerts.HazardWind:          "Wind",
	alerts.HazardTemperature:   "Temperature",
	alerts.HazardSpecialAlerts: "Weather service alert",
	alerts.HazardAirQuality:    "Air quality",
}

func label(h alerts.Hazard) string {
	if l, ok := hazardLabels[h]; ok {
		return l
	}
	return string(h)
}

// Compose renders the subject and bodies shared by all recipients of a.
// A failing brief writer is logged and the email goes out without it.
func (c *Composer) Compose(ctx context.Context, a Alert) (Message, error) {
	var brief string
	if c.brief != nil {
		b, err := c.brief.Brief(ctx, a)
		if err != nil {
			zap.S().Warnw("notify: crew brief failed", "jobsite", a.JobsiteID, "error", err)
		} else {
			brief = strings.TrimSpace(b)
		}
	}

	views := make([]triggerView, 0, len(a.Triggers))
	labels := make([]string, 0, len(a.Triggers))
	for _, t := range a.Triggers {
		views = append(views, triggerView{Label: label(t.Hazard), Message: t.Message})
		labels = append(labels, label(t.Hazard))
	}

	var buf bytes.Buffer
	err := alertTemplate.Execute(&buf, map[string]any{
		"JobsiteName": a.JobsiteName,
		"Address":     a.Address,
		"CompanyName": a.CompanyName,
		"Brief":       brief,
		"Window":      formatWindow(a),
		"Triggers":    views,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render alert email: %w", err)
	}

	html := buf.String()
	return Message{
		Subject: fmt.Sprintf("Weather alert: %s at %s", strings.Join(labels, ", "), a.JobsiteName),
		HTML:    html,
		Text:    htmlutil.ToText(html),
	}, nil
}

// ComposeTest renders the admin test email.
func (c *Composer) ComposeTest(to string, now time.Time) (Message, error) {
	var buf bytes.Buffer
	if err := testTemplate.Execute(&buf, now.UTC().Format(time.RFC1123)); err != nil {
		return Message{}, fmt.Errorf("render test email: %w", err)
	}
	return Message{
		To:      to,
		Subject: "SiteWeather test email",
		HTML:    buf.String(),
		Text:    htmlutil.ToText(buf.String()),
	}, nil
}

func formatWindow(a Alert) string {
	if a.WindowStart.IsZero() || a.WindowEnd.IsZero() {
		return "next 24 hours"
	}
	loc := time.UTC
	if a.Timezone != "" {
		if l, err := time.LoadLocation(a.Timezone); err == nil {
			loc = l
		}
	}
	const layout = "Mon Jan 2 3:04 PM"
	return fmt.Sprintf("%s to %s (%s)", a.WindowStart.In(loc).Format(layout), a.WindowEnd.In(loc).Format(layout), loc.String())
}
