package models

import (
	"time"

	"gorm.io/datatypes"
)

// Profile holds the optional profile data owned 1:1 by a user. The row is
// created lazily on first update or image upload.
type Profile struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`   // Primary key.
	UserID uint64 `gorm:"not null;uniqueIndex"`       // Owning user.
	User   *User  `gorm:"foreignKey:UserID"`          // Owning user record.

	Bio      string `gorm:"type:text"`     // Free-text bio, capped at 500 chars.
	Location string `gorm:"type:text"`     // Location, capped at 120 chars.

	ImageURL     string `gorm:"type:text"` // Full-size profile image URL.
	ThumbnailURL string `gorm:"type:text"` // Thumbnail derivative URL.

	Skills      []Skill      `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"` // Owned skills.
	Experiences []Experience `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"` // Owned experience entries.
	Educations  []Education  `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE"` // Owned education entries.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Skill is a named skill attached to a profile.
type Skill struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	ProfileID uint64 `gorm:"not null;index"`           // Owning profile.
	Name      string `gorm:"type:text;not null"`       // Skill name.
}

// Experience is a work history entry attached to a profile.
type Experience struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	ProfileID uint64 `gorm:"not null;index"`           // Owning profile.

	Title       string          `gorm:"type:text;not null"` // Job title.
	Company     string          `gorm:"type:text"`          // Employer name.
	StartDate   *datatypes.Date `gorm:""`                   // Start date, optional.
	EndDate     *datatypes.Date `gorm:""`                   // End date, nil while current.
	Description string          `gorm:"type:text"`          // Free-text description.
}

// Education is a study history entry attached to a profile.
type Education struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	ProfileID uint64 `gorm:"not null;index"`           // Owning profile.

	School       string `gorm:"type:text;not null"` // Institution name.
	Degree       string `gorm:"type:text"`          // Degree obtained.
	FieldOfStudy string `gorm:"type:text"`          // Field of study.
	StartYear    int    `gorm:""`                   // First year, zero when unknown.
	EndYear      int    `gorm:""`                   // Last year, zero while current.
}
