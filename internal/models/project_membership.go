package models

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type ProjectMembership struct {
	BaseModel

	UserID    uint   `gorm:"not null;uniqueIndex:idx_user_project" json:"user_id"`
	ProjectID uint   `gorm:"not null;uniqueIndex:idx_user_project" json:"project_id"`
	Role      string `gorm:"not null" json:"role"`

	// Relationships
	User    *User    `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
