package models

// Attachment is metadata only; the blob itself lives in the object store
// under FilePath.
type Attachment struct {
	BaseModel

	TaskID     uint   `gorm:"not null;index" json:"task_id"`
	UploaderID uint   `gorm:"not null;index" json:"uploader_id"`
	FileName   string `gorm:"not null" json:"file_name"`
	FilePath   string `gorm:"not null" json:"file_path"`
	FileURL    string `gorm:"not null" json:"file_url"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`

	// Relationships
	Task     *Task `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Uploader *User `gorm:"foreignKey:UploaderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"uploader,omitempty"`
}
