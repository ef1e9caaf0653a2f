package models


import (
    "gorm.io/gorm"
    "time"
)

const (
    AppointmentScheduled = "scheduled"
    AppointmentCancelled = "cancelled"
    AppointmentCompleted = "completed"
)

// Appointment stores the visit as a single combined date+time instant.
// A partial unique index on (doctor_id, appointment_date) over scheduled
// rows guards double booking; see the migrate subcommand in cmd/main.go.
type Appointment struct {
    gorm.Model
    PatientID       uint      `gorm:"column:patient_id;not null" json:"patient_id"`
    DoctorID        uint      `gorm:"column:doctor_id;not null" json:"doctor_id"`
    AppointmentDate time.Time `gorm:"column:appointment_date;not null" json:"appointment_date"`
    Status          string    `gorm:"column:status;size:20;not null;default:scheduled" json:"status"`

    Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
    Doctor  *Doctor  `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

func (Appointment) TableName() string {
    return "appointments"
}
