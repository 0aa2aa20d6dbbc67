package models

import "time"

// Post status values.
const (
	PostStatusActive  = "active"
	PostStatusDeleted = "deleted"
)

// Post is a feed post authored by a user. Deletion is a soft delete via the
// status column. The counters are denormalized; every mutation of the
// underlying like/comment rows must adjust them in the same transaction.
type Post struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	UserID uint64 `gorm:"not null;index"`           // Author.
	User   *User  `gorm:"foreignKey:UserID"`        // Author record.

	Content   string `gorm:"type:text;not null"`                 // Post body, capped at 5000 chars.
	MediaURL  string `gorm:"type:text"`                          // Optional attached media URL.
	MediaType string `gorm:"type:text"`                          // Derived media kind (image, video).
	Status    string `gorm:"type:text;not null;default:active;index"` // active or deleted.

	LikesCount    int `gorm:"not null;default:0"` // Denormalized like count.
	CommentsCount int `gorm:"not null;default:0"` // Denormalized comment count.
	SharesCount   int `gorm:"not null;default:0"` // Denormalized share count.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}

// PostLike records that a user liked a post. The (post, user) pair is unique
// at the storage layer; the toggle endpoint relies on that constraint.
type PostLike struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`                       // Primary key.
	PostID uint64 `gorm:"not null;uniqueIndex:idx_post_likes_post_user"`  // Liked post.
	UserID uint64 `gorm:"not null;uniqueIndex:idx_post_likes_post_user"`  // Liking user.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// PostComment is a comment on a post, optionally replying to a parent
// comment for one level of threading.
type PostComment struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	PostID uint64 `gorm:"not null;index"`           // Commented post.
	UserID uint64 `gorm:"not null;index"`           // Comment author.
	User   *User  `gorm:"foreignKey:UserID"`        // Comment author record.

	Content  string  `gorm:"type:text;not null"`                      // Comment body, capped at 1000 chars.
	ParentID *uint64 `gorm:"index"`                                   // Parent comment for one-level replies.
	Status   string  `gorm:"type:text;not null;default:active"`       // active or deleted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
