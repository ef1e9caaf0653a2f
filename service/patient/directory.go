package patient

import (
	"errors"
	"time"

	"github.com/razumed/clinic-server/cmd/models"
	"gorm.io/gorm"
)

var ErrNotRegistered = errors.New("patient not registered")

// Directory is the patient lookup layer shared by the HTTP handlers and
// the chat gateway. Chat callers identify patients by their external
// messenger handle; HTTP callers by the ID in their token.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) ByExternalID(externalID string) (*models.Patient, error) {
	var patient models.Patient
	if err := d.db.Where("external_id = ?", externalID).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	return &patient, nil
}

func (d *Directory) ByID(id uint) (*models.Patient, error) {
	var patient models.Patient
	if err := d.db.First(&patient, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	return &patient, nil
}

// Enroll creates a patient record from the chat registration dialogue.
// A second enrollment for the same handle updates the profile in place
// instead of failing, so re-running the dialogue is harmless.
func (d *Directory) Enroll(externalID string, firstName, lastName, gender string, birthDate time.Time, phone string) (*models.Patient, error) {
	var patient models.Patient
	err := d.db.Where("external_id = ?", externalID).First(&patient).Error
	switch {
	case err == nil:
		patient.FirstName = firstName
		patient.LastName = lastName
		patient.Gender = gender
		patient.BirthDate = &birthDate
		patient.Phone = phone
		if err := d.db.Save(&patient).Error; err != nil {
			return nil, err
		}
		return &patient, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		patient = models.Patient{
			ExternalID: externalID,
			FirstName:  firstName,
			LastName:   lastName,
			Gender:     gender,
			BirthDate:  &birthDate,
			Phone:      phone,
		}
		if err := d.db.Create(&patient).Error; err != nil {
			return nil, err
		}
		return &patient, nil
	default:
		return nil, err
	}
}

// RecentAppointments returns the patient's latest visits, newest first.
func (d *Directory) RecentAppointments(patientID uint, limit int) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := d.db.Where("patient_id = ?", patientID).
		Preload("Doctor").Preload("Doctor.Specialization").
		Order("appointment_date DESC").
		Limit(limit).
		Find(&appointments).Error
	return appointments, err
}

func (d *Directory) Diagnoses(patientID uint) ([]models.Diagnosis, error) {
	var diagnoses []models.Diagnosis
	err := d.db.Where("patient_id = ?", patientID).
		Order("diagnosed_at DESC").
		Find(&diagnoses).Error
	return diagnoses, err
}

// LastDiagnosis returns the most recent diagnosis, or nil when the
// record card has none yet.
func (d *Directory) LastDiagnosis(patientID uint) (*models.Diagnosis, error) {
	var diagnosis models.Diagnosis
	err := d.db.Where("patient_id = ?", patientID).
		Order("diagnosed_at DESC").
		First(&diagnosis).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &diagnosis, nil
}

// LastVisitedDoctor returns the doctor of the patient's most recent
// appointment, used when issuing certificates.
func (d *Directory) LastVisitedDoctor(patientID uint) (*models.Doctor, error) {
	var appointment models.Appointment
	err := d.db.Where("patient_id = ?", patientID).
		Preload("Doctor").Preload("Doctor.Specialization").
		Order("appointment_date DESC").
		First(&appointment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return appointment.Doctor, nil
}
