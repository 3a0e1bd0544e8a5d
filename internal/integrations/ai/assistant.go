package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/taskboard-dev/taskboard/internal/apperr"
)

const maxSuggestions = 15

const suggestSystemPrompt = `You are a project planning assistant for a Kanban board.
Break the user's goal into small, concrete, actionable task titles.
Respond with a JSON array of strings only, no prose and no markdown.`

const copilotSystemPrompt = `You are a helpful assistant embedded in a Kanban project board.
Answer the user's question using only the project context provided.
Be concise. If the context does not contain the answer, say so.`

type TaskSummary struct {
	Title    string `json:"title"`
	Status   string `json:"status"`
	Assignee string `json:"assignee,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
}

// ProjectContext is the serialized board state handed to the model.
type ProjectContext struct {
	Name        string        `json:"project"`
	Description string        `json:"description,omitempty"`
	Members     []string      `json:"members"`
	Tasks       []TaskSummary `json:"tasks"`
}

func (pc ProjectContext) String() string {
	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return pc.Name
	}
	return string(data)
}

type Assistant struct {
	completer Completer
}

func NewAssistant(completer Completer) *Assistant {
	return &Assistant{completer: completer}
}

// SuggestTasks asks for task titles that decompose goal.
func (a *Assistant) SuggestTasks(ctx context.Context, goal string, pc ProjectContext) ([]string, error) {
	prompt := fmt.Sprintf("Project context:\n%s\n\nGoal: %s", pc, goal)

	reply, err := a.completer.Complete(ctx, suggestSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return ParseSuggestions(reply)
}

func (a *Assistant) Answer(ctx context.Context, question string, pc ProjectContext) (string, error) {
	prompt := fmt.Sprintf("Project context:\n%s\n\nQuestion: %s", pc, question)

	reply, err := a.completer.Complete(ctx, copilotSystemPrompt, prompt)
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", apperr.Upstream("empty completion", errors.New("blank reply"))
	}

	return reply, nil
}

// ParseSuggestions accepts a bare JSON array or an object with a "tasks"
// array, optionally wrapped in a markdown code fence.
func ParseSuggestions(reply string) ([]string, error) {
	body := StripCodeFence(reply)

	var titles []string
	if err := json.Unmarshal([]byte(body), &titles); err != nil {
		var wrapped struct {
			Tasks []string `json:"tasks"`
		}
		if werr := json.Unmarshal([]byte(body), &wrapped); werr != nil || wrapped.Tasks == nil {
			return nil, apperr.Upstream("unparseable task suggestions", err)
		}
		titles = wrapped.Tasks
	}

	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, title)
		if len(out) == maxSuggestions {
			break
		}
	}

	if len(out) == 0 {
		return nil, apperr.Upstream("no task suggestions returned", errors.New("empty list"))
	}

	return out, nil
}

// StripCodeFence removes a leading ``` or ```json line and a trailing ```.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if newline := strings.IndexByte(s, '\n'); newline >= 0 {
		s = s[newline+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
