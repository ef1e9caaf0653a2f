package models

import (
	"time"

	"gorm.io/gorm"
)

type Device struct {
    gorm.Model // This already includes ID, CreatedAt, UpdatedAt, DeletedAt
    Token      string `gorm:"not null;uniqueIndex:idx_token_patient" json:"token"`
    PatientID  uint   `gorm:"not null;index;uniqueIndex:idx_token_patient" json:"patient_id"`
    DeviceType string `gorm:"type:varchar(50)" json:"deviceType"`
    DeviceName string `gorm:"type:varchar(100)" json:"deviceName,omitempty"`
}

// NotificationRequest represents a request to send a notification
type NotificationRequest struct {
    Token string                 `json:"token"`
    Title string                 `json:"title"`
    Body  string                 `json:"body"`
    Data  map[string]interface{} `json:"data,omitempty"`
}

// BroadcastRequest targets every registered device, or just the listed
// patients when PatientIDs is set.
type BroadcastRequest struct {
    PatientIDs []uint                 `json:"patient_ids,omitempty"`
    Title      string                 `json:"title"`
    Body       string                 `json:"body"`
    Data       map[string]interface{} `json:"data,omitempty"`
}


type NotificationHistory struct {
    gorm.Model
    PatientID uint      `gorm:"index" json:"patient_id"`
    Title     string    `json:"title"`
    Body      string    `json:"body"`
    Data      string    `gorm:"type:text" json:"data,omitempty"` // JSON string of additional data
    Status    string    `gorm:"type:varchar(20)" json:"status"`  // sent, delivered, failed
    SentAt    time.Time `json:"sentAt"`
}
