package database

import (
	"log"

	"github.com/growagarden/gagstock-bot/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Initialize(dbPath string) error {
	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	log.Println("Database connected successfully")

	// Auto-migrate one table per persisted kind
	err = DB.AutoMigrate(
		&models.TrackedItem{},
		&models.UserPreferences{},
		&models.UserStats{},
		&models.PricePoint{},
		&models.NotificationRecord{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migration completed")
	return nil
}

func GetDB() *gorm.DB {
	return DB
}
