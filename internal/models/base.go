package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the uuid primary key and the timestamps every synced table exposes.
// Column names are camel-cased because the sync service and the SPA read them verbatim.
type Base struct {
	ID        string    `json:"id"         gorm:"type:varchar(36);primaryKey"`
	CreatedAt time.Time `json:"createdAt"  gorm:"column:createdAt"`
	UpdatedAt time.Time `json:"modifiedAt" gorm:"column:modifiedAt"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
