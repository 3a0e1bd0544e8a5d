package types

import (
	"strings"
)

const ContextUserKey = "user"

const (
	StatusTodo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

// TaskStatuses is the fixed set of board columns.
var TaskStatuses = []string{StatusTodo, StatusInProgress, StatusDone}

func IsValidTaskStatus(status string) bool {
	for _, s := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

func IsValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Server -> client events.
const (
	EventTaskCreated       = "task_created"
	EventTaskUpdated       = "task_updated"
	EventTaskDeleted       = "task_deleted"
	EventNewComment        = "new_comment"
	EventAttachmentAdded   = "attachment_added"
	EventAttachmentDeleted = "attachment_deleted"
	EventNewNotification   = "new_notification"
	EventNewInvitation     = "new_invitation"
)

// Client -> server messages.
const (
	MessageJoinProject  = "join_project"
	MessageLeaveProject = "leave_project"
)

// Default allowed origins for development
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// AllowedOrigins merges the development defaults with the client URL and a
// comma separated list of extra origins.
func AllowedOrigins(clientURL, extra string) []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL != "" {
		origins = append(origins, clientURL)
	}

	if extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
