package db

import (
	"fmt"

	"github.com/vireo-social/vireo/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all entities. The unique indexes
// on users.username, users.email and post_likes(post_id, user_id) come from
// the model tags; they are what actually guarantees uniqueness under
// concurrent writes.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Skill{},
		&models.Experience{},
		&models.Education{},
		&models.Post{},
		&models.PostLike{},
		&models.PostComment{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}
