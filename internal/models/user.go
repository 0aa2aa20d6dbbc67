package models

import "time"

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username     string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email        string `gorm:"type:text;not null;uniqueIndex"` // Unique email address.
	PasswordHash string `gorm:"type:text;not null"`             // Salted bcrypt digest, never the plaintext.

	Profile *Profile `gorm:"foreignKey:UserID"` // Lazily created profile.
	Posts   []Post   `gorm:"foreignKey:UserID"` // Authored posts.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Public returns the caller-safe representation of the user.
func (u *User) Public() map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
	}
}
