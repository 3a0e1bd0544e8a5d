package models

const (
	NotificationTaskAssigned       = "task_assigned"
	NotificationMention            = "mention"
	NotificationInvitation         = "invitation"
	NotificationInvitationAccepted = "invitation_accepted"
	NotificationInvitationDeclined = "invitation_declined"
	NotificationDueSoon            = "due_soon"
)

type Notification struct {
	BaseModel

	RecipientID uint   `gorm:"not null;index" json:"recipient_id"`
	SenderID    *uint  `gorm:"index" json:"sender_id"`
	Type        string `gorm:"not null" json:"type"`
	Content     string `gorm:"not null" json:"content"`
	ProjectID   *uint  `gorm:"index" json:"project_id"`
	TaskID      *uint  `gorm:"index" json:"task_id"`
	IsRead      bool   `gorm:"not null;default:false" json:"is_read"`

	// Relationships
	Recipient *User    `gorm:"foreignKey:RecipientID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Sender    *User    `gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"sender,omitempty"`
	Project   *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Task      *Task    `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}
