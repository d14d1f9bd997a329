package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/tickerpulse/ticker-mentions-bot/internal/config"
	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
)

// Service handles sending spike reports via the configured channels.
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendSpikeReport sends a report via all configured notification channels.
func (s *Service) SendSpikeReport(report *models.SpikeReport) error {
	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(report); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent spike report to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent spike report via email")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(report *models.SpikeReport) error {
	message := s.buildTeamsMessage(report)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(report *models.SpikeReport) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Mention Spikes - %s", report.Platform),
		Text:    fmt.Sprintf("Detected %d mention spikes on %s", len(report.Spikes), report.Platform),
	}

	facts := []TeamsFact{
		{Name: "Generated", Value: report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
		{Name: "Spikes", Value: fmt.Sprintf("%d", len(report.Spikes))},
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	limit := 5
	if len(report.Spikes) < limit {
		limit = len(report.Spikes)
	}
	var spikeFacts []TeamsFact
	for _, spike := range report.Spikes[:limit] {
		spikeFacts = append(spikeFacts, TeamsFact{
			Name:  spike.Symbol,
			Value: formatSpike(spike),
		})
	}
	if len(spikeFacts) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Spikes",
			Facts:         spikeFacts,
			Markdown:      true,
		})
	}

	return message
}

func formatSpike(spike models.SpikeResult) string {
	ratio := fmt.Sprintf("%.1fx", spike.SpikeRatio)
	if spike.InfiniteRatio {
		ratio = "new symbol"
	}
	return fmt.Sprintf("%d mentions (%s, avg %.1f, sentiment %s)",
		spike.CurrentMentions, ratio, spike.AvgMentions, spike.SentimentLabel)
}

var emailTemplate = template.Must(template.New("report").Parse(`
<h2>Mention Spikes on {{.Platform}}</h2>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}</p>
<table border="1" cellpadding="4">
	<tr><th>Symbol</th><th>Mentions</th><th>Ratio</th><th>Sentiment</th></tr>
	{{range .Spikes}}
	<tr>
		<td>{{.Symbol}}</td>
		<td>{{.CurrentMentions}}</td>
		<td>{{if .InfiniteRatio}}new{{else}}{{printf "%.1f" .SpikeRatio}}x{{end}}</td>
		<td>{{.SentimentLabel}}</td>
	</tr>
	{{end}}
</table>
`))

func (s *Service) sendEmail(report *models.SpikeReport) error {
	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, report); err != nil {
		return fmt.Errorf("failed to render email body: %w", err)
	}

	message := gomail.NewMessage()
	message.SetHeader("From", s.config.SMTPUsername)
	message.SetHeader("To", s.config.NotificationEmail)
	message.SetHeader("Subject", fmt.Sprintf("Mention spikes on %s - %d detected", report.Platform, len(report.Spikes)))
	message.SetBody("text/html", body.String())

	dialer := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
