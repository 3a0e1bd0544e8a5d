package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type Task struct {
	BaseModel

	ProjectID   uint           `gorm:"not null;index" json:"project_id"`
	CreatorID   uint           `gorm:"not null;index" json:"creator_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `json:"description"`
	Status      string         `gorm:"not null;index" json:"status"`
	Priority    *string        `json:"priority"`
	AssigneeID  *uint          `gorm:"index" json:"assignee_id"`
	StartDate   *time.Time     `json:"start_date"`
	DueDate     *time.Time     `gorm:"index" json:"due_date"`
	Labels      datatypes.JSON `json:"labels"`

	GitHubPRURL          *string    `gorm:"column:github_pr_url;index" json:"github_pr_url"`
	GitHubPRStatus       *string    `gorm:"column:github_pr_status" json:"github_pr_status"`
	GitHubInstallationID *int64     `gorm:"column:github_installation_id" json:"-"`
	ReminderSentAt       *time.Time `json:"-"`

	// Relationships
	Project  *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Creator  *User    `gorm:"foreignKey:CreatorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Assignee *User    `gorm:"foreignKey:AssigneeID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"assignee,omitempty"`
}

// LabelList decodes the stored labels, returning an empty slice for NULL or
// malformed values.
func (t Task) LabelList() []string {
	labels := []string{}
	if len(t.Labels) == 0 {
		return labels
	}
	if err := json.Unmarshal(t.Labels, &labels); err != nil {
		return []string{}
	}
	return labels
}

// EncodeLabels converts a label list into the JSON column value.
func EncodeLabels(labels []string) datatypes.JSON {
	if labels == nil {
		labels = []string{}
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}
