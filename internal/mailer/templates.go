// Package mailer renders the HTML bodies of every email the system sends.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Dias221467/ZielManager/internal/models"
)

const (
	brandColor  = "#0033A1"
	TestSubject = "Test Email from ZielManager"
)

const layout = `{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #eee; border-radius: 5px;">
  <div style="text-align: center; margin-bottom: 20px;"><h1 style="color: {{brand}};">ZielManager</h1></div>
  {{template "content" .}}
  {{if .ActionURL}}<div style="margin-top: 30px; text-align: center;">
    <a href="{{.ActionURL}}" style="background-color: {{brand}}; color: white; padding: 10px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">{{.ActionLabel}}</a>
  </div>{{end}}
  {{if .Unsubscribable}}<div style="margin-top: 30px; font-size: 12px; color: #999; text-align: center;">
    <p>If you don't want to receive these emails anymore, you can disable email notifications in your profile settings.</p>
  </div>{{end}}
</div>{{end}}`

const notificationContent = `{{define "content"}}<div style="margin-bottom: 20px;">
  <h2 style="color: #333;">{{.Message}}</h2>
  <p style="color: #666; line-height: 1.5;">You have a new notification in your ZielManager account.</p>
  {{if .GoalTitle}}<p style="color: #666; line-height: 1.5;"><strong>Goal:</strong> {{.GoalTitle}}</p>{{end}}
  {{if .From}}<p style="color: #666; line-height: 1.5;"><strong>From:</strong> {{.From}}</p>{{end}}
</div>{{end}}`

const digestContent = `{{define "content"}}<div style="margin-bottom: 20px;">
  <div style="background-color: {{.Urgency.Color}}; color: white; padding: 12px; border-radius: 4px; margin-bottom: 16px;">
    <strong>{{.Urgency.Label}}:</strong> {{.DaysRemaining}} days left until the review deadline ({{.Deadline}}).
  </div>
  <p style="color: #333;">Hello {{.RecipientName}},</p>
  <p style="color: #666; line-height: 1.5;">{{len .Goals}} goal(s) are waiting for your review:</p>
  <table style="width: 100%; border-collapse: collapse;">
    <tr><th align="left">Goal</th><th align="left">Apprentice</th><th align="left">Submitted</th><th></th></tr>
    {{range .Goals}}<tr style="border-top: 1px solid #eee;">
      <td>{{.Title}}</td><td>{{.ApprenticeName}}</td><td>{{date .SubmittedAt}}</td>
      <td><a href="{{goalURL .ID}}" style="color: {{brand}};">Review</a></td>
    </tr>{{end}}
  </table>
</div>{{end}}`

const simpleContent = `{{define "content"}}<div style="margin-bottom: 20px;">
  <h2 style="color: #333;">{{.Heading}}</h2>
  {{range .Paragraphs}}<p style="color: #666; line-height: 1.5;">{{.}}</p>{{end}}
</div>{{end}}`

// Urgency classifies how close the review deadline is.
type Urgency struct {
	Level string
	Label string
	Color string
}

// UrgencyFor returns urgent within a week, important within two weeks and
// informational otherwise.
func UrgencyFor(daysRemaining int) Urgency {
	switch {
	case daysRemaining <= 7:
		return Urgency{Level: "urgent", Label: "Urgent", Color: "#D32F2F"}
	case daysRemaining <= 14:
		return Urgency{Level: "important", Label: "Important", Color: "#F57C00"}
	default:
		return Urgency{Level: "info", Label: "Reminder", Color: brandColor}
	}
}

// Renderer builds email bodies with links into the web app at baseURL.
type Renderer struct {
	baseURL      string
	notification *template.Template
	digest       *template.Template
	simple       *template.Template
}

func NewRenderer(baseURL string) *Renderer {
	baseURL = strings.TrimSuffix(baseURL, "/")
	funcs := template.FuncMap{
		"brand":   func() string { return brandColor },
		"date":    func(t time.Time) string { return t.Format("02.01.2006") },
		"goalURL": func(id string) string { return baseURL + "/goals/" + id },
	}
	parse := func(content string) *template.Template {
		return template.Must(template.Must(template.New("email").Funcs(funcs).Parse(layout)).Parse(content))
	}
	return &Renderer{
		baseURL:      baseURL,
		notification: parse(notificationContent),
		digest:       parse(digestContent),
		simple:       parse(simpleContent),
	}
}

// ActionURL is where a notification email links to.
func (r *Renderer) ActionURL(n *models.Notification) string {
	switch {
	case n.GoalID != "":
		return r.baseURL + "/goals/" + n.GoalID
	case n.Type == models.NotificationGoalReminder:
		return r.baseURL + "/goals/create"
	case n.Type == models.NotificationSupervisorRequestResult:
		return r.baseURL + "/profile"
	default:
		return r.baseURL
	}
}

// Notification renders the email for a stored notification.
func (r *Renderer) Notification(n *models.Notification) (subject, body string, err error) {
	from := n.SenderName
	if from == models.SystemSenderName || n.SenderID == models.SystemSenderID {
		from = ""
	}
	data := struct {
		Message, GoalTitle, From string
		ActionURL, ActionLabel   string
		Unsubscribable           bool
	}{
		Message:        n.Message,
		GoalTitle:      n.GoalTitle,
		From:           from,
		ActionURL:      r.ActionURL(n),
		ActionLabel:    "View in ZielManager",
		Unsubscribable: true,
	}
	body, err = execute(r.notification, data)
	return "ZielManager: " + n.Message, body, err
}

// Digest is the input of a review reminder email.
type Digest struct {
	RecipientName string
	Goals         []models.PendingGoal
	DaysRemaining int
	Deadline      time.Time
}

func (r *Renderer) ReviewDigest(d Digest) (subject, body string, err error) {
	urgency := UrgencyFor(d.DaysRemaining)
	data := struct {
		RecipientName          string
		Goals                  []models.PendingGoal
		DaysRemaining          int
		Deadline               string
		Urgency                Urgency
		ActionURL, ActionLabel string
		Unsubscribable         bool
	}{
		RecipientName:  d.RecipientName,
		Goals:          d.Goals,
		DaysRemaining:  d.DaysRemaining,
		Deadline:       d.Deadline.Format("02.01.2006"),
		Urgency:        urgency,
		ActionURL:      r.baseURL + "/dashboard",
		ActionLabel:    "Open review queue",
		Unsubscribable: true,
	}
	body, err = execute(r.digest, data)
	subject = fmt.Sprintf("ZielManager: %d goal(s) awaiting your review", len(d.Goals))
	if urgency.Level == "urgent" {
		subject = "[Urgent] " + subject
	}
	return subject, body, err
}

func (r *Renderer) Verification(name, token string) (subject, body string, err error) {
	body, err = r.renderSimple("Welcome to ZielManager, "+name+"!",
		[]string{"Please verify your email address to activate your account."},
		r.baseURL+"/verify-email?token="+token, "Verify email")
	return "Verify your ZielManager account", body, err
}

func (r *Renderer) PasswordReset(token string) (subject, body string, err error) {
	body, err = r.renderSimple("Reset your password",
		[]string{"Use the link below to choose a new password. It expires in one hour.",
			"If you did not request a reset you can ignore this email."},
		r.baseURL+"/reset-password?token="+token, "Reset password")
	return "Reset your ZielManager password", body, err
}

func (r *Renderer) Test() (subject, body string, err error) {
	body, err = r.renderSimple("This is a test email",
		[]string{"If you received this, your email notification system is working!"}, "", "")
	return TestSubject, body, err
}

func (r *Renderer) renderSimple(heading string, paragraphs []string, actionURL, actionLabel string) (string, error) {
	return execute(r.simple, struct {
		Heading                string
		Paragraphs             []string
		ActionURL, ActionLabel string
		Unsubscribable         bool
	}{heading, paragraphs, actionURL, actionLabel, false})
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}
