package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BruteforceAction string

const (
	ActionAdminPromote BruteforceAction = "ADMINPROMOTE"
	ActionVipPromote   BruteforceAction = "VIPPROMOTE"
)

// BruteforceModel records one failed privileged attempt. Rows are never updated.
type BruteforceModel struct {
	ID        string           `json:"id"        gorm:"type:varchar(36);primaryKey"`
	Action    BruteforceAction `json:"action"    gorm:"type:varchar(16);not null;index:idx_bruteforce_action_created,priority:1"`
	UserID    *string          `json:"userId"    gorm:"column:userId;type:varchar(36);index"`
	User      *UserModel       `json:"-"         gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	IP        string           `json:"ip"        gorm:"type:varchar(64);not null;index"`
	CreatedAt time.Time        `json:"createdAt" gorm:"column:createdAt;index:idx_bruteforce_action_created,priority:2"`
}

func (BruteforceModel) TableName() string { return "Bruteforce" }

func (b *BruteforceModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
