package models

type Project struct {
	BaseModel

	Name           string `gorm:"not null" json:"name"`
	Description    string `json:"description"`
	OwnerID        uint   `gorm:"not null;index" json:"owner_id"`
	DiscordWebhook string `json:"discord_webhook,omitempty"`
	SlackWebhook   string `json:"slack_webhook,omitempty"`

	// Relationships
	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"owner,omitempty"`
}
