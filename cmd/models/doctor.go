package models

import (
    "time"

    "gorm.io/gorm"
)


type Specialization struct {
    gorm.Model
    Name        string `gorm:"column:name;size:100;not null" json:"name"`
    Description string `gorm:"column:description;type:text" json:"description"`
}

func (Specialization) TableName() string {
    return "specializations"
}


type Doctor struct {
    gorm.Model
    FirstName        string `gorm:"column:first_name;size:255;not null" json:"first_name"`
    LastName         string `gorm:"column:last_name;size:255;not null" json:"last_name"`
    Phone            string `gorm:"column:phone;size:20" json:"phone"`
    Email            string `gorm:"column:email;size:255" json:"email"`
    Description      string `gorm:"column:description;type:text" json:"description"`
    SpecializationID uint   `gorm:"column:specialization_id;not null" json:"specialization_id"`

    Specialization *Specialization  `gorm:"foreignKey:SpecializationID" json:"specialization,omitempty"`
    Schedule       []DoctorSchedule `gorm:"foreignKey:DoctorID;constraint:OnDelete:CASCADE;" json:"schedule,omitempty"`
}

func (Doctor) TableName() string {
    return "doctors"
}


// DoctorSchedule holds one row per weekday the doctor accepts appointments.
// Weekday uses time.Weekday numbering (Sunday = 0).
type DoctorSchedule struct {
    gorm.Model
    DoctorID uint         `gorm:"column:doctor_id;not null;index" json:"doctor_id"`
    Weekday  time.Weekday `gorm:"column:weekday;not null" json:"weekday"`
}

func (DoctorSchedule) TableName() string {
    return "doctor_schedules"
}


type Review struct {
    gorm.Model
    PatientID uint    `gorm:"column:patient_id;not null" json:"patient_id"`
    DoctorID  uint    `gorm:"column:doctor_id;not null" json:"doctor_id"`
    Rating    float64 `gorm:"column:rating;not null" json:"rating"`
    Comment   string  `gorm:"column:comment;type:text" json:"comment"`

    Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
    Doctor  *Doctor  `gorm:"foreignKey:DoctorID" json:"-"`
}

func (Review) TableName() string {
    return "reviews"
}
