package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

func Migrate(gdb *gorm.DB) {
	if err := gdb.AutoMigrate(
		&models.Message{},
		&models.IngestionEvent{},
		&models.ModerationAction{},
		&models.DenylistEntry{},
		&models.AdminUser{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}
}
