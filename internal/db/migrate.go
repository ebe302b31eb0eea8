package db

import (
	"coachdesk/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Topic{},
		&models.Participation{},
		&models.PointsAccount{},
		&models.PointsEntry{},
		&models.Settlement{},
	)
}
