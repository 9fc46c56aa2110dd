package dbhelper

import (
	"closetai/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func SetupCleaner(db *gorm.DB) func() {

	return func() {
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitRecord{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.InsightReport{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.InventoryItem{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserPushToken{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserAccount{})
	}
}

func Migrate(db *gorm.DB, model interface{}) {
	err := db.AutoMigrate(model)
	if err != nil {
		log.Fatal().Err(err).Msgf("Error while migrating %T", model)
	}
}
