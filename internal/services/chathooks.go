package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorGreen = 65280 // #00FF00

	hookUsername = "Taskboard"
	hookTimeout  = 10 * time.Second
)

// ChatHooks posts board milestones to a project's chat webhooks.
type ChatHooks interface {
	TaskCompleted(ctx context.Context, project models.Project, task models.Task, actorName string) error
}

type ChatNotifier struct {
	client *http.Client
	log    *logger.Logger
}

func NewChatNotifier(log *logger.Logger) *ChatNotifier {
	return &ChatNotifier{
		client: &http.Client{Timeout: hookTimeout},
		log:    log.Named("chathooks"),
	}
}

// TaskCompleted posts to every configured hook. A failing hook does not
// stop the others; all failures are returned joined.
func (n *ChatNotifier) TaskCompleted(ctx context.Context, project models.Project, task models.Task, actorName string) error {
	var errs []error

	if project.DiscordWebhook != "" {
		if err := n.post(ctx, project.DiscordWebhook, discordTaskCompleted(project, task, actorName)); err != nil {
			errs = append(errs, fmt.Errorf("discord: %w", err))
		}
	}

	if project.SlackWebhook != "" {
		if err := n.post(ctx, project.SlackWebhook, slackTaskCompleted(project, task, actorName)); err != nil {
			errs = append(errs, fmt.Errorf("slack: %w", err))
		}
	}

	return errors.Join(errs...)
}

func discordTaskCompleted(project models.Project, task models.Task, actorName string) DiscordWebhookRequest {
	fields := []DiscordWebhookField{
		{Name: "Task", Value: task.Title, Inline: false},
		{Name: "Completed by", Value: actorName, Inline: true},
	}
	if task.Priority != nil {
		fields = append(fields, DiscordWebhookField{Name: "Priority", Value: *task.Priority, Inline: true})
	}

	return DiscordWebhookRequest{
		Username: hookUsername,
		Embeds: []DiscordEmbed{
			{
				Title:       "✅ Task completed",
				Description: fmt.Sprintf("**%s** was moved to Done.", task.Title),
				Color:       ColorGreen,
				Fields:      fields,
				Footer:      &DiscordFooter{Text: fmt.Sprintf("Project: %s", project.Name)},
				Timestamp:   time.Now().Format(time.RFC3339),
			},
		},
	}
}

func slackTaskCompleted(project models.Project, task models.Task, actorName string) SlackWebhookRequest {
	return SlackWebhookRequest{
		Username:  hookUsername,
		IconEmoji: ":white_check_mark:",
		Text:      ":white_check_mark: *Task completed*",
		Attachments: []SlackAttachment{
			{
				Color: "good",
				Title: task.Title,
				Text:  fmt.Sprintf("Moved to Done by %s", actorName),
				Fields: []SlackField{
					{Title: "Project", Value: project.Name, Short: true},
					{Title: "Completed by", Value: actorName, Short: true},
				},
				Footer:    fmt.Sprintf("Project: %s", project.Name),
				Timestamp: time.Now().Unix(),
			},
		},
	}
}

func (n *ChatNotifier) post(ctx context.Context, webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.log.Debug("chat hook delivered", "status", resp.StatusCode)
	return nil
}
