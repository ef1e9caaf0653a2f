package models

import (
	"time"

	"gorm.io/gorm"
)


type Patient struct {
    gorm.Model
    ExternalID     string     `gorm:"column:external_id;size:64;uniqueIndex;not null" json:"external_id"`
    FirstName      string     `gorm:"column:first_name;size:255;not null" json:"first_name"`
    LastName       string     `gorm:"column:last_name;size:255;not null" json:"last_name"`
    Gender         string     `gorm:"column:gender;size:10" json:"gender"`
    Phone          string     `gorm:"column:phone;size:20;not null" json:"phone"`
    Email          string     `gorm:"column:email;size:255" json:"email"`
    BirthDate      *time.Time `gorm:"column:birth_date" json:"birth_date,omitempty"`
    PasswordHash   string     `gorm:"column:password_hash;size:255" json:"-"`
    EmailVerified  bool       `gorm:"column:email_verified;default:false" json:"email_verified"`
    EmailVerificationCode string    `gorm:"size:6" json:"-"`
    VerificationExpiry    time.Time `gorm:"" json:"-"`
    Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
    RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`

    Appointments []Appointment `gorm:"foreignKey:PatientID" json:"appointments,omitempty"`
    Diagnoses    []Diagnosis   `gorm:"foreignKey:PatientID" json:"diagnoses,omitempty"`
}

func (Patient) TableName() string {
    return "patients"
}
