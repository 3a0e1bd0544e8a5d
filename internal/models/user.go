package models

type User struct {
	BaseModel

	Username             string  `gorm:"uniqueIndex;not null" json:"username"`
	Name                 string  `json:"name"`
	Email                string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash         *string `json:"-"`
	Provider             *string `gorm:"uniqueIndex:idx_user_provider" json:"-"`
	ProviderID           *string `gorm:"uniqueIndex:idx_user_provider" json:"-"`
	GitHubInstallationID *int64  `gorm:"column:github_installation_id" json:"-"`
}

// HasPassword reports whether the account can log in with credentials.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
