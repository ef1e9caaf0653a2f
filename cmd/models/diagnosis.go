package models

import (
    "time"

    "gorm.io/gorm"
)


type Diagnosis struct {
    gorm.Model
    PatientID   uint      `gorm:"column:patient_id;not null;index" json:"patient_id"`
    Name        string    `gorm:"column:name;size:255;not null" json:"name"`
    DiagnosedAt time.Time `gorm:"column:diagnosed_at;not null" json:"diagnosed_at"`

    Patient *Patient `gorm:"foreignKey:PatientID" json:"-"`
}

func (Diagnosis) TableName() string {
    return "diagnoses"
}
