package models

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined:
		return true
	default:
		return false
	}
}

// Invitation rows are unique per (project, invitee email) while pending;
// accepted and declined rows are kept as history.
type Invitation struct {
	BaseModel

	ProjectID    uint             `gorm:"not null;index;uniqueIndex:idx_pending_invitation,where:status = 'pending'" json:"project_id"`
	InviterID    uint             `gorm:"not null;index" json:"inviter_id"`
	InviteeEmail string           `gorm:"not null;index;uniqueIndex:idx_pending_invitation,where:status = 'pending'" json:"invitee_email"`
	Status       InvitationStatus `gorm:"not null;default:pending" json:"status"`

	// Relationships
	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"project,omitempty"`
	Inviter *User    `gorm:"foreignKey:InviterID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"inviter,omitempty"`
}
