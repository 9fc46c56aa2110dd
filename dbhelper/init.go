package dbhelper

import (
	"fmt"
	"os"
	"testing"
	"time"

	"closetai/models"
	"closetai/services"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		services.GetEnv("DB_USERNAME", ""),
		services.GetEnv("DB_PASSWORD", ""),
		services.GetEnv("DB_HOST", ""),
		services.GetEnv("DB_PORT", ""),
		services.GetEnv("DB_NAME", ""),
	)
}

func OpenDB() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Minute * 5)
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	MigrateAll(db)
	return db, nil
}

func SetupDB() *gorm.DB {
	db, err := OpenDB()
	if err != nil {
		panic(err)
	}
	return db
}

func MigrateAll(db *gorm.DB) {
	Migrate(db, &models.UserAccount{})
	Migrate(db, &models.UserPushToken{})
	Migrate(db, &models.InventoryItem{})
	Migrate(db, &models.OutfitRecord{})
	Migrate(db, &models.InsightReport{})
}

// SetupTestDB connects to the local test database and skips the test when it isn't running.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	setDefaultEnv("DB_USERNAME", "closetai")
	setDefaultEnv("DB_PASSWORD", "closetai")
	setDefaultEnv("DB_HOST", "localhost")
	setDefaultEnv("DB_NAME", "closetai_test")
	setDefaultEnv("DB_PORT", "5432")
	db, err := OpenDB()
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	return db
}

func setDefaultEnv(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
