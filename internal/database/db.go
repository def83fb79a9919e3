package database

import (
	"errors"
	"log"

	"backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.DMTRecord{},
		&model.ReferenceItem{},
		&model.AuditLog{},
		&model.ReportCounter{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	if err := seedReportCounter(db); err != nil {
		log.Println("WARNING: Failed to seed report counter:", err)
	}

	return db, nil
}

// seedReportCounter creates the single counter row on first boot. Report
// numbers start at 1000 and are never reused.
func seedReportCounter(db *gorm.DB) error {
	var counter model.ReportCounter
	err := db.First(&counter, "id = ?", 1).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.Create(&model.ReportCounter{ID: 1, NextNumber: model.ReportCounterSeed}).Error
}
