package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UUIDModel is used by records whose ids are handed to the model and the client as opaque strings.
type UUIDModel struct {
	ID        string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *UUIDModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func NewID() string {
	return uuid.NewString()
}
