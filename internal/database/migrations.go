package database

import (
	"gorm.io/gorm"

	"github.com/batterybuildsog1/Project-manager/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Notification{},
		&models.DedupEntry{},
		&models.Task{},
		&models.FullKitItem{},
		&models.Blocker{},
	)
}
