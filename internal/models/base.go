package models

import "time"

// BaseModel replaces gorm.Model without soft deletes so that deleting a row
// fires the foreign-key cascades declared on its children.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
