package model

import "time"

// FileType coarse media type derived from the MIME top-level type
type FileType string

const (
	FileTypeVideo       FileType = "video"
	FileTypeImage       FileType = "image"
	FileTypeAudio       FileType = "audio"
	FileTypeText        FileType = "text"
	FileTypeApplication FileType = "application"
)

// FinalizedFile record persisted once a multipart upload completes.
// Exactly one record exists per successful completion.
type FinalizedFile struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`

	// Object information
	Name     string   `gorm:"type:varchar(255)" json:"name" bson:"name"`              // Original file name
	Path     string   `gorm:"type:varchar(500);uniqueIndex" json:"path" bson:"path"`   // Storage key
	Url      string   `gorm:"type:varchar(1024)" json:"url" bson:"url"`                // Public URL
	Size     int64    `json:"size" bson:"size"`                                        // Declared size in bytes
	MimeType string   `gorm:"type:varchar(255)" json:"mimeType" bson:"mime_type"`      // Declared content type
	FileType FileType `gorm:"type:varchar(32);index" json:"fileType" bson:"file_type"` // video / image / audio / ...

	// Ownership
	UserId   string  `gorm:"type:varchar(255);index" json:"userId" bson:"user_id"`
	FolderId *string `gorm:"type:varchar(255)" json:"folderId,omitempty" bson:"folder_id,omitempty"`

	// Filled by the media probe after completion (optional)
	VideoDuration *float64 `json:"videoDuration,omitempty" bson:"video_duration,omitempty"`

	IsActive bool `gorm:"default:true" json:"isActive" bson:"is_active"`

	// Timestamps
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt" bson:"updated_at"`
}

// TableName sets custom table name
func (FinalizedFile) TableName() string {
	return "tb_finalized_file"
}

// IsVideo reports whether the file is eligible for duration probing
func (f *FinalizedFile) IsVideo() bool {
	return f.FileType == FileTypeVideo
}
