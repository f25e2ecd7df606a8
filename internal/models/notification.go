package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a per-recipient record. Data holds the JSON payload for Type.
type Notification struct {
	BaseModel

	UserID string         `gorm:"size:36;index;not null" json:"user_id"`
	User   *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Type   string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Data   datatypes.JSON `json:"data"`

	ReadAt *time.Time `gorm:"index" json:"read_at"`
}

// NotificationDelivery is an outbox row for a notification whose insert failed during fan-out.
type NotificationDelivery struct {
	BaseModel

	UserID        string         `gorm:"size:36;index;not null"`
	Type          string         `gorm:"type:varchar(64);not null"`
	Data          datatypes.JSON
	Attempts      int       `gorm:"default:0"`
	LastError     string    `gorm:"type:text"`
	NextAttemptAt time.Time `gorm:"index"`
}
